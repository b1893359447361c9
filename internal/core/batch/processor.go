package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/store"
)

// ItemProcessor summarizes a single entity. Implementations must be safe for
// concurrent use and never panic on bad input.
type ItemProcessor interface {
	Process(ctx context.Context, entity model.Entity, systemPrompt string, cfg model.ModelConfiguration, batchID int64) model.ProcessingResult
}

// Processor calls the model once per entity and stores the summary.
type Processor struct {
	invoker llm.ModelInvoker
	results store.ResultStore
	timeout time.Duration
	logger  *zap.Logger
}

func NewProcessor(invoker llm.ModelInvoker, results store.ResultStore, taskTimeout time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		invoker: invoker,
		results: results,
		timeout: taskTimeout,
		logger:  logger,
	}
}

func (p *Processor) Process(ctx context.Context, entity model.Entity, systemPrompt string, cfg model.ModelConfiguration, batchID int64) model.ProcessingResult {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	ctx = llm.WithCallContext(ctx, batchID, fmt.Sprintf("item_summary:%d", entity.ID))

	resp, err := p.invoker.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   entity.PromptPayload(),
		Config:       cfg,
	})
	if err != nil {
		return p.fail(entity, batchID, fmt.Errorf("generate summary: %w", err))
	}
	content := strings.TrimSpace(resp.Text)
	if content == "" {
		return p.fail(entity, batchID, llm.ErrEmptyResponse)
	}

	saved, err := p.results.SaveSummary(ctx, model.SummaryRecord{
		EntityID:             entity.ID,
		EntityType:           model.SummaryOfItem,
		Name:                 "Summary of " + entity.Name,
		Content:              content,
		BatchID:              batchID,
		ModelConfigurationID: cfg.ID,
	})
	if err != nil {
		return p.fail(entity, batchID, fmt.Errorf("save summary: %w", err))
	}

	return model.Succeeded(entity.ID, saved.ID)
}

func (p *Processor) fail(entity model.Entity, batchID int64, err error) model.ProcessingResult {
	p.logger.Warn("Item summary failed",
		zap.Int64("batch_id", batchID),
		zap.Int64("entity_id", entity.ID),
		zap.Error(err))
	return model.Failed(entity.ID, err)
}
