package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const defaultPrompt = "Summarize this item."

type fixture struct {
	store    *store.MemoryStore
	invoker  *MockInvoker
	ids      *MockSequence
	configID int64
	coord    *Coordinator
}

func newFixture(t *testing.T, cfg config.BatchConfig) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	mc, err := s.CreateConfiguration(context.Background(), model.ModelConfiguration{
		Model: model.Model{Name: "GPT-4O", Provider: "openai"},
	})
	require.NoError(t, err)

	f := &fixture{store: s, invoker: &MockInvoker{}, ids: &MockSequence{}, configID: mc.ID}
	f.coord = f.coordinator(cfg, s, zap.NewNop())
	return f
}

func (f *fixture) coordinator(cfg config.BatchConfig, results store.ResultStore, logger *zap.Logger) *Coordinator {
	proc := NewProcessor(f.invoker, results, cfg.TaskTimeout.Duration, logger)
	return NewCoordinator(f.store, f.store, proc, f.ids, cfg, defaultPrompt, logger)
}

func (f *fixture) addItems(t *testing.T, names ...string) []model.Entity {
	t.Helper()
	var out []model.Entity
	for _, n := range names {
		e, err := f.store.CreateItem(context.Background(), model.Entity{Type: model.TypeBook, Name: n})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func batchConfig(concurrency int) config.BatchConfig {
	return config.BatchConfig{Concurrency: concurrency, TaskTimeout: config.Duration{Duration: 5 * time.Second}}
}

func failFor(name string) func(context.Context, llm.Request) (llm.Response, error) {
	return func(ctx context.Context, req llm.Request) (llm.Response, error) {
		if strings.Contains(req.UserPrompt, name) {
			return llm.Response{}, errProvider
		}
		return llm.Response{Text: "A concise summary."}, nil
	}
}

func TestRunBatch_PartialFailure(t *testing.T) {
	f := newFixture(t, batchConfig(4))
	items := f.addItems(t, "Dune", "Emma", "Ulysses")
	f.invoker.Respond = failFor("Emma")

	res, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.Len(t, res.ResultIDs, 2)
	assert.Equal(t, "Processed 3 items: 2 succeeded, 1 failed", res.Message)
	assert.NotZero(t, res.BatchID)

	summaries, err := f.store.ListSummaries(context.Background(), store.SummaryFilter{BatchID: &res.BatchID})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// result ids follow entity order, not completion order
	byEntity := map[int64]model.SummaryRecord{}
	for _, s := range summaries {
		byEntity[s.EntityID] = s
		assert.Equal(t, model.SummaryOfItem, s.EntityType)
		assert.Equal(t, f.configID, s.ModelConfigurationID)
	}
	assert.Equal(t, []int64{byEntity[items[0].ID].ID, byEntity[items[2].ID].ID}, res.ResultIDs)
	assert.Equal(t, "Summary of Dune", byEntity[items[0].ID].Name)
}

func TestRunBatch_CountsAlwaysAddUp(t *testing.T) {
	f := newFixture(t, batchConfig(3))
	var names []string
	for i := 0; i < 25; i++ {
		names = append(names, fmt.Sprintf("item-%02d", i))
	}
	f.addItems(t, names...)
	f.invoker.Respond = func(ctx context.Context, req llm.Request) (llm.Response, error) {
		for _, suffix := range []string{"3\"", "7\""} {
			if strings.Contains(req.UserPrompt, suffix) {
				return llm.Response{}, errProvider
			}
		}
		return llm.Response{Text: "ok"}, nil
	}

	res, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 25, res.SuccessCount+res.FailureCount)
	assert.Equal(t, res.SuccessCount, len(res.ResultIDs))
	assert.Equal(t, 5, res.FailureCount)
}

func TestRunBatch_EmptySelection(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	configs := &MockConfigStore{}
	proc := NewProcessor(f.invoker, f.store, time.Second, zap.NewNop())
	coord := NewCoordinator(f.store, configs, proc, f.ids, batchConfig(2), defaultPrompt, zap.NewNop())

	for _, sel := range []Selector{All(), ByTypes(model.TypeFilm), ByIDs()} {
		res, err := coord.RunBatch(context.Background(), sel, "", 0)
		require.NoError(t, err)
		assert.Equal(t, model.BatchSummary{ResultIDs: []int64{}, Message: "No items to process"}, res)
	}

	assert.Zero(t, configs.Lookups.Load())
	assert.Zero(t, f.invoker.Calls())
	assert.Zero(t, f.ids.next.Load())
}

func TestRunBatch_UnknownConfiguration(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	f.addItems(t, "Dune", "Emma")

	_, err := f.coord.RunBatch(context.Background(), All(), "", 999)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Contains(t, err.Error(), "Model configuration with ID 999 not found")

	_, err = f.coord.RunBatch(context.Background(), All(), "", -3)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	assert.Zero(t, f.invoker.Calls())
	assert.Zero(t, f.ids.next.Load())
	summaries, _ := f.store.ListSummaries(context.Background(), store.SummaryFilter{})
	assert.Empty(t, summaries)
}

func TestRunBatch_UnknownCollection(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	f.addItems(t, "Dune")

	_, err := f.coord.RunBatch(context.Background(), ByCollection(42), "", f.configID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Zero(t, f.invoker.Calls())
}

func TestRunBatch_ByCollection(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	items := f.addItems(t, "Dune", "Emma", "Ulysses")
	ctx := context.Background()

	collID, err := f.store.NextValue(ctx, "collection")
	require.NoError(t, err)
	_, err = f.store.SaveRelationship(ctx, model.RelationshipRecord{
		RelationshipType: model.RelCollectionDefinition,
		SourceType:       model.EndpointCollection,
		SourceID:         collID,
		TargetType:       model.EndpointCollection,
		TargetID:         collID,
		Name:             "Favourites",
	})
	require.NoError(t, err)
	for _, e := range []model.Entity{items[2], items[0]} {
		_, err = f.store.SaveRelationship(ctx, model.RelationshipRecord{
			RelationshipType: model.RelCollection,
			SourceType:       model.EndpointItem,
			SourceID:         e.ID,
			TargetType:       model.EndpointCollection,
			TargetID:         collID,
		})
		require.NoError(t, err)
	}

	res, err := f.coord.RunBatch(ctx, ByCollection(collID), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)

	summaries, err := f.store.ListSummaries(ctx, store.SummaryFilter{BatchID: &res.BatchID})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	got := map[int64]bool{summaries[0].EntityID: true, summaries[1].EntityID: true}
	assert.Equal(t, map[int64]bool{items[0].ID: true, items[2].ID: true}, got)
}

func TestRunBatch_DistinctBatchesAndResults(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	f.addItems(t, "Dune", "Emma")

	first, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)
	second, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)

	assert.NotEqual(t, first.BatchID, second.BatchID)
	for _, id := range first.ResultIDs {
		assert.NotContains(t, second.ResultIDs, id)
	}
}

func TestRunBatch_PromptSelection(t *testing.T) {
	f := newFixture(t, batchConfig(1))
	f.addItems(t, "Dune")

	_, err := f.coord.RunBatch(context.Background(), All(), "   ", f.configID)
	require.NoError(t, err)
	_, err = f.coord.RunBatch(context.Background(), All(), "Focus on the ecology.", f.configID)
	require.NoError(t, err)

	require.Len(t, f.invoker.Requests, 2)
	assert.Equal(t, defaultPrompt, f.invoker.Requests[0].SystemPrompt)
	assert.Equal(t, "Focus on the ecology.", f.invoker.Requests[1].SystemPrompt)
	assert.Equal(t, f.configID, f.invoker.Requests[0].Config.ID)
}

func TestRunBatch_ConcurrencyBound(t *testing.T) {
	f := newFixture(t, batchConfig(3))
	var names []string
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("item-%d", i))
	}
	f.addItems(t, names...)
	f.invoker.Respond = func(ctx context.Context, req llm.Request) (llm.Response, error) {
		time.Sleep(10 * time.Millisecond)
		return llm.Response{Text: "ok"}, nil
	}

	res, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 12, res.SuccessCount)
	assert.LessOrEqual(t, f.invoker.MaxInflight.Load(), int32(3))
	assert.Greater(t, f.invoker.MaxInflight.Load(), int32(0))
}

func TestRunBatch_TaskTimeout(t *testing.T) {
	cfg := config.BatchConfig{Concurrency: 2, TaskTimeout: config.Duration{Duration: 50 * time.Millisecond}}
	f := newFixture(t, cfg)
	f.addItems(t, "Dune", "Hung")
	f.invoker.Respond = func(ctx context.Context, req llm.Request) (llm.Response, error) {
		if strings.Contains(req.UserPrompt, "Hung") {
			<-ctx.Done()
			return llm.Response{}, ctx.Err()
		}
		return llm.Response{Text: "ok"}, nil
	}

	start := time.Now()
	res, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
}

func TestRunBatch_CancellationKeepsCounts(t *testing.T) {
	f := newFixture(t, batchConfig(1))
	f.addItems(t, "a", "b", "c", "d")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.invoker.Respond = func(taskCtx context.Context, req llm.Request) (llm.Response, error) {
		cancel()
		return llm.Response{}, taskCtx.Err()
	}

	res, err := f.coord.RunBatch(ctx, All(), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 4, res.FailureCount)
	assert.Empty(t, res.ResultIDs)
	assert.Equal(t, 1, f.invoker.Calls())
}

func TestRunBatch_OverallTimeout(t *testing.T) {
	cfg := batchConfig(1)
	cfg.Timeout = config.Duration{Duration: 30 * time.Millisecond}
	f := newFixture(t, cfg)
	f.addItems(t, "a", "b", "c")
	f.invoker.Respond = func(ctx context.Context, req llm.Request) (llm.Response, error) {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}

	res, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.FailureCount)
	assert.Equal(t, 1, f.invoker.Calls())
}

func TestRunBatch_PersistenceFailure(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	f.addItems(t, "Dune", "Emma")
	coord := f.coordinator(batchConfig(2), &MockResultStore{Err: errors.New("disk full")}, zap.NewNop())

	res, err := coord.RunBatch(context.Background(), All(), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
}

func TestRunBatch_SequenceFailure(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	f.addItems(t, "Dune")
	f.ids.Err = errors.New("connection refused")

	_, err := f.coord.RunBatch(context.Background(), All(), "", f.configID)
	assert.True(t, apperr.Is(err, apperr.CodeUnavailable))
	assert.Zero(t, f.invoker.Calls())
}

func TestRunBatch_MissingIDsAreLogged(t *testing.T) {
	f := newFixture(t, batchConfig(2))
	items := f.addItems(t, "Dune")
	core, logs := observer.New(zapcore.WarnLevel)
	coord := f.coordinator(batchConfig(2), f.store, zap.New(core))

	res, err := coord.RunBatch(context.Background(), ByIDs(items[0].ID, 404), "", f.configID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)

	warnings := logs.FilterMessage("Some requested items were not found").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, int64(2), warnings[0].ContextMap()["requested"])
}

func TestProcess_EmptyResponse(t *testing.T) {
	f := newFixture(t, batchConfig(1))
	f.invoker.Respond = func(ctx context.Context, req llm.Request) (llm.Response, error) {
		return llm.Response{Text: "  \n"}, nil
	}
	proc := NewProcessor(f.invoker, f.store, time.Second, zap.NewNop())

	res := proc.Process(context.Background(), model.Entity{ID: 3, Name: "Dune"}, defaultPrompt, model.ModelConfiguration{ID: 1}, 7)
	assert.False(t, res.Success)
	assert.Equal(t, int64(3), res.EntityID)
	assert.Nil(t, res.ResultID)
	assert.Equal(t, llm.ErrEmptyResponse.Error(), res.Error)
}

func TestProcess_PlainTextFallback(t *testing.T) {
	f := newFixture(t, batchConfig(1))
	proc := NewProcessor(f.invoker, f.store, time.Second, zap.NewNop())

	entity := model.Entity{ID: 5, Type: model.TypePaper, Name: "Odd", Attributes: model.Attributes{"score": math.Inf(1)}}
	res := proc.Process(context.Background(), entity, defaultPrompt, model.ModelConfiguration{ID: 1}, 7)
	require.True(t, res.Success)

	require.Len(t, f.invoker.Requests, 1)
	assert.True(t, strings.HasPrefix(f.invoker.Requests[0].UserPrompt, "Item Details:\n- ID: 5\n"))
}

func TestProcess_TagsModelCalls(t *testing.T) {
	f := newFixture(t, batchConfig(1))
	rec := llm.NewRecorder(f.invoker, f.store, "openai", zap.NewNop())
	proc := NewProcessor(rec, f.store, time.Second, zap.NewNop())

	res := proc.Process(context.Background(), model.Entity{ID: 8, Name: "Dune"}, defaultPrompt, model.ModelConfiguration{ID: 1}, 77)
	require.True(t, res.Success)

	batchID := int64(77)
	calls, err := f.store.ListModelCalls(context.Background(), &batchID)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "item_summary:8", calls[0].RequestContext)
}
