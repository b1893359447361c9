package llm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/metrics"
)

// CallStore persists model call audit rows.
type CallStore interface {
	SaveModelCall(ctx context.Context, call model.ModelCall) (model.ModelCall, error)
}

type callContextKey struct{}

type callContext struct {
	batchID        int64
	requestContext string
}

// WithCallContext tags model calls made under ctx with a batch id and a short
// description of the caller.
func WithCallContext(ctx context.Context, batchID int64, requestContext string) context.Context {
	return context.WithValue(ctx, callContextKey{}, callContext{batchID: batchID, requestContext: requestContext})
}

func callContextFrom(ctx context.Context) callContext {
	cc, _ := ctx.Value(callContextKey{}).(callContext)
	return cc
}

// Recorder wraps an invoker, writes a ModelCall row per invocation and
// observes call metrics. A failing audit write is logged and never fails the
// call itself.
type Recorder struct {
	next     ModelInvoker
	store    CallStore
	logger   *zap.Logger
	fallback string
	now      func() time.Time
}

func NewRecorder(next ModelInvoker, store CallStore, defaultProvider string, logger *zap.Logger) *Recorder {
	return &Recorder{
		next:     next,
		store:    store,
		logger:   logger,
		fallback: defaultProvider,
		now:      time.Now,
	}
}

func (r *Recorder) Generate(ctx context.Context, req Request) (Response, error) {
	provider := NormalizeProvider(req.Config.Model.Provider, r.fallback)
	cc := callContextFrom(ctx)
	correlationID := uuid.NewString()

	start := r.now()
	resp, err := r.next.Generate(ctx, req)
	elapsed := r.now().Sub(start)

	metrics.LLMCallsTotal.WithLabelValues(provider, metrics.Status(err == nil)).Inc()
	metrics.LLMCallDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	if err == nil {
		metrics.LLMTokensTotal.WithLabelValues(provider, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensTotal.WithLabelValues(provider, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	call := model.ModelCall{
		CorrelationID:        correlationID,
		ModelConfigurationID: req.Config.ID,
		Provider:             provider,
		Model:                req.Config.Model.APIModelName(),
		BatchID:              cc.batchID,
		RequestContext:       cc.requestContext,
		SystemPrompt:         req.SystemPrompt,
		UserPrompt:           req.UserPrompt,
		Response:             resp.Text,
		PromptTokens:         resp.Usage.PromptTokens,
		CompletionTokens:     resp.Usage.CompletionTokens,
		DurationMillis:       elapsed.Milliseconds(),
		Success:              err == nil,
		CreatedAt:            start,
	}
	if err != nil {
		call.Error = err.Error()
	}

	if r.store != nil {
		// The audit row must land even when the caller's deadline has passed.
		if _, saveErr := r.store.SaveModelCall(context.WithoutCancel(ctx), call); saveErr != nil {
			r.logger.Warn("Failed to record model call",
				zap.String("correlation_id", correlationID),
				zap.Error(saveErr))
		}
	}

	if err != nil {
		r.logger.Debug("Model call failed",
			zap.String("provider", provider),
			zap.String("correlation_id", correlationID),
			zap.Int64("batch_id", cc.batchID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	}
	return resp, err
}
