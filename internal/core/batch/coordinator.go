// Package batch fans a summary request out to one model call per entity and
// folds the outcomes into a single BatchSummary.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/metrics"
	"github.com/agenthands/genai/internal/sequence"
	"github.com/agenthands/genai/internal/store"
)

const noItemsMessage = "No items to process"

type Coordinator struct {
	entities      store.EntityStore
	configs       store.ConfigStore
	processor     ItemProcessor
	ids           sequence.Generator
	cfg           config.BatchConfig
	defaultPrompt string
	logger        *zap.Logger
}

func NewCoordinator(
	entities store.EntityStore,
	configs store.ConfigStore,
	processor ItemProcessor,
	ids sequence.Generator,
	cfg config.BatchConfig,
	defaultPrompt string,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		entities:      entities,
		configs:       configs,
		processor:     processor,
		ids:           ids,
		cfg:           cfg,
		defaultPrompt: defaultPrompt,
		logger:        logger,
	}
}

// RunBatch summarizes every selected entity. Request-level problems (unknown
// configuration or collection, id allocation) are returned as *apperr.Error
// before any model call; per-entity failures only show up in the counts.
func (c *Coordinator) RunBatch(ctx context.Context, sel Selector, systemPrompt string, configID int64) (model.BatchSummary, error) {
	entities, err := sel.Resolve(ctx, c.entities, c.logger)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindSummary, "rejected").Inc()
		return model.BatchSummary{}, err
	}
	if len(entities) == 0 {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindSummary, "empty").Inc()
		return model.BatchSummary{ResultIDs: []int64{}, Message: noItemsMessage}, nil
	}

	mc, err := FindConfiguration(ctx, c.configs, configID)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindSummary, "rejected").Inc()
		return model.BatchSummary{}, err
	}

	batchID, err := c.ids.Next(ctx)
	if err != nil {
		metrics.BatchRunsTotal.WithLabelValues(metrics.KindSummary, "rejected").Inc()
		return model.BatchSummary{}, apperr.Wrap(err, apperr.CodeUnavailable, "failed to allocate batch id")
	}

	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = c.defaultPrompt
	}

	c.logger.Info("Starting summary batch",
		zap.Int64("batch_id", batchID),
		zap.String("selector", sel.String()),
		zap.Int("items", len(entities)),
		zap.Int64("model_configuration_id", mc.ID),
		zap.Int("concurrency", c.cfg.Concurrency))

	start := time.Now()
	results := c.dispatch(ctx, entities, systemPrompt, *mc, batchID)
	elapsed := time.Since(start)

	summary := Aggregate(batchID, results)

	metrics.BatchRunsTotal.WithLabelValues(metrics.KindSummary, "ok").Inc()
	metrics.BatchDuration.WithLabelValues(metrics.KindSummary).Observe(elapsed.Seconds())
	c.logger.Info("Summary batch finished",
		zap.Int64("batch_id", batchID),
		zap.Int("succeeded", summary.SuccessCount),
		zap.Int("failed", summary.FailureCount),
		zap.Duration("elapsed", elapsed))

	return summary, nil
}

// dispatch runs one task per entity on a bounded pool and returns the results
// in entity order. Each task writes only its own slot.
func (c *Coordinator) dispatch(ctx context.Context, entities []model.Entity, systemPrompt string, mc model.ModelConfiguration, batchID int64) []model.ProcessingResult {
	if c.cfg.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout.Duration)
		defer cancel()
	}

	results := make([]model.ProcessingResult, len(entities))

	var g errgroup.Group
	g.SetLimit(max(c.cfg.Concurrency, 1))

	for i, entity := range entities {
		i, entity := i, entity
		g.Go(func() error {
			// Tasks that never started still get a slot so counts add up.
			if err := ctx.Err(); err != nil {
				results[i] = model.Failed(entity.ID, err)
				metrics.BatchTasksTotal.WithLabelValues(metrics.KindSummary, "cancelled").Inc()
				return nil
			}

			metrics.BatchInflight.WithLabelValues(metrics.KindSummary).Inc()
			defer metrics.BatchInflight.WithLabelValues(metrics.KindSummary).Dec()

			results[i] = c.processor.Process(ctx, entity, systemPrompt, mc, batchID)
			metrics.BatchTasksTotal.WithLabelValues(metrics.KindSummary, metrics.Status(results[i].Success)).Inc()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Aggregate folds per-entity results into a BatchSummary. Result ids keep the
// order of results; failures contribute none.
func Aggregate(batchID int64, results []model.ProcessingResult) model.BatchSummary {
	summary := model.BatchSummary{
		BatchID:   batchID,
		ResultIDs: make([]int64, 0, len(results)),
	}
	for _, r := range results {
		if r.Success && r.ResultID != nil {
			summary.SuccessCount++
			summary.ResultIDs = append(summary.ResultIDs, *r.ResultID)
			continue
		}
		summary.FailureCount++
	}
	summary.Message = fmt.Sprintf("Processed %d items: %d succeeded, %d failed",
		len(results), summary.SuccessCount, summary.FailureCount)
	return summary
}
