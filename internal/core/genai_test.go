package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/batch"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/core/operations"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/sequence"
	"github.com/agenthands/genai/internal/store"
)

const affirmed = `{"hasRelationship": true, "relationshipType": "similar_themes", "confidence": 0.8, "explanation": "Both explore memory."}`

func newTestGenAI(t *testing.T) (*GenAI, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	invoker := llm.InvokerFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		if strings.HasPrefix(req.UserPrompt, "Entity 1:") {
			return llm.Response{Text: affirmed}, nil
		}
		return llm.Response{Text: "A concise summary."}, nil
	})
	g := NewGenAI(st, invoker, sequence.NewLocalFrom(100), config.Defaults(), zap.NewNop())
	return g, st
}

func seedItems(t *testing.T, g *GenAI, names ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		e, err := g.CreateItem(context.Background(), model.Entity{Name: n, Type: "Book"})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	return ids
}

func TestCreateItem_Validation(t *testing.T) {
	g, _ := newTestGenAI(t)
	ctx := context.Background()

	_, err := g.CreateItem(ctx, model.Entity{Type: "book"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = g.CreateItem(ctx, model.Entity{Name: "Dune"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = g.CreateItem(ctx, model.Entity{Name: "Shelf", Type: "collection"})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	e, err := g.CreateItem(ctx, model.Entity{Name: "  Dune ", Type: " Book"})
	require.NoError(t, err)
	assert.Equal(t, "Dune", e.Name)
	assert.Equal(t, "book", e.Type)
	assert.Positive(t, e.ID)
}

func TestGetItem_NotFound(t *testing.T) {
	g, _ := newTestGenAI(t)

	_, err := g.GetItem(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Equal(t, "Item with ID 404 not found", apperr.As(err).Message)
}

func TestUpdateItemAttributes_Merges(t *testing.T) {
	g, _ := newTestGenAI(t)
	ctx := context.Background()

	e, err := g.CreateItem(ctx, model.Entity{
		Name:       "Dune",
		Type:       "book",
		Attributes: model.Attributes{"author": "Frank Herbert", "year": 1965},
	})
	require.NoError(t, err)

	updated, err := g.UpdateItemAttributes(ctx, e.ID, model.Attributes{"year": nil, "genre": "sf"})
	require.NoError(t, err)
	assert.Equal(t, model.Attributes{"author": "Frank Herbert", "genre": "sf"}, updated.Attributes)

	_, err = g.UpdateItemAttributes(ctx, 999, model.Attributes{"genre": "sf"})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCollections(t *testing.T) {
	g, _ := newTestGenAI(t)
	ctx := context.Background()
	ids := seedItems(t, g, "A", "B", "C")

	_, err := g.CreateCollection(ctx, " ", "", nil)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = g.CreateCollection(ctx, "Shelf", "", []int64{ids[0], 999})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	coll, err := g.CreateCollection(ctx, "Shelf", "favourites", ids[:2])
	require.NoError(t, err)
	assert.Equal(t, "Shelf", coll.Name)

	members, err := g.CollectionMembers(ctx, coll.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	added, err := g.AddMembers(ctx, coll.ID, []int64{ids[1], ids[2], ids[2]})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	members, err = g.CollectionMembers(ctx, coll.ID)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	_, err = g.AddMembers(ctx, 12345, ids)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	_, err = g.CollectionMembers(ctx, 12345)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestCreateConfiguration_Validation(t *testing.T) {
	g, _ := newTestGenAI(t)
	ctx := context.Background()
	hot := float32(3)

	_, err := g.CreateConfiguration(ctx, model.ModelConfiguration{})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = g.CreateConfiguration(ctx, model.ModelConfiguration{Model: model.Model{Name: "x", Provider: "acme"}})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	_, err = g.CreateConfiguration(ctx, model.ModelConfiguration{
		Model:  model.Model{Name: "GPT-4O"},
		Params: model.GenerationParams{Temperature: &hot},
	})
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))

	mc, err := g.CreateConfiguration(ctx, model.ModelConfiguration{Model: model.Model{Name: "CLAUDE-3-5-HAIKU", Provider: "Anthropic"}})
	require.NoError(t, err)
	assert.Equal(t, "claude", mc.Model.Provider)

	got, err := g.GetConfiguration(ctx, mc.ID)
	require.NoError(t, err)
	assert.Equal(t, mc.ID, got.ID)

	all, err := g.ListConfigurations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEndToEnd(t *testing.T) {
	g, _ := newTestGenAI(t)
	ctx := context.Background()

	ids := seedItems(t, g, "Solaris", "Blindsight", "Annihilation")
	coll, err := g.CreateCollection(ctx, "Strange Fiction", "", ids)
	require.NoError(t, err)
	mc, err := g.CreateConfiguration(ctx, model.ModelConfiguration{Model: model.Model{Name: "GPT-4O-MINI", Provider: "openai"}})
	require.NoError(t, err)

	sum, err := g.SummarizeBatch(ctx, batch.ByCollection(coll.ID), "", mc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.SuccessCount)
	assert.Len(t, sum.ResultIDs, 3)

	batchID := sum.BatchID
	calls, err := g.ModelCalls(ctx, &batchID)
	require.NoError(t, err)
	assert.Len(t, calls, 3)
	for _, c := range calls {
		assert.True(t, strings.HasPrefix(c.RequestContext, "item_summary:"))
		assert.Equal(t, "openai", c.Provider)
		assert.Equal(t, "gpt-4o-mini", c.Model)
	}

	summaries, err := g.Summaries(ctx, store.SummaryFilter{BatchID: &batchID})
	require.NoError(t, err)
	assert.Len(t, summaries, 3)

	resp, err := g.ExecuteOperation(ctx, operations.Request{
		OperationID:          operations.OpGenerateRelationships,
		ModelConfigurationID: mc.ID,
		CollectionID:         coll.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Successfully generated 3 relationships", resp.Message)

	rels, err := g.Relationships(ctx, ids[0])
	require.NoError(t, err)
	similar := 0
	for _, r := range rels {
		if r.RelationshipType == "similar_themes" {
			similar++
		}
	}
	assert.Equal(t, 2, similar)

	resp, err = g.ExecuteOperation(ctx, operations.Request{
		OperationID:          operations.OpGroupRelated,
		ModelConfigurationID: mc.ID,
		CollectionID:         coll.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Found 1 groups", resp.Message)
}
