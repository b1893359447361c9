// Package core wires the batch engine, the relationship scanner and the
// collection operations over one store and one model invoker.
package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/batch"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/core/operations"
	"github.com/agenthands/genai/internal/core/relationship"
	"github.com/agenthands/genai/internal/core/summary"
	"github.com/agenthands/genai/internal/driver"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/sequence"
	"github.com/agenthands/genai/internal/store"
)

type GenAI struct {
	Store      store.Store
	LLM        llm.ModelInvoker
	Batches    *batch.Coordinator
	Scanner    *relationship.Scanner
	Operations *operations.Service
	logger     *zap.Logger
}

// NewGenAI builds the service. Every model call made through it is recorded
// in the store's model call log.
func NewGenAI(st store.Store, invoker llm.ModelInvoker, ids sequence.Generator, cfg *config.Config, logger *zap.Logger) *GenAI {
	recorded := llm.NewRecorder(invoker, st, cfg.LLM.Provider, logger.Named("llm"))

	processor := batch.NewProcessor(recorded, st, cfg.Batch.TaskTimeout.Duration, logger.Named("batch"))
	coordinator := batch.NewCoordinator(st, st, processor, ids, cfg.Batch, cfg.Prompts.ItemSummary, logger.Named("batch"))

	scanner := relationship.NewScanner(relationship.Stores{
		Entities:      st,
		Configs:       st,
		Relationships: st,
		Results:       st,
	}, recorded, ids, cfg.Scan, cfg.Batch.TaskTimeout.Duration, cfg.Prompts.Relationship, logger.Named("scan"))

	summarizer := summary.NewSummarizer(recorded, cfg.Prompts, logger.Named("summary"))
	ops := operations.NewService(coordinator, scanner, summarizer, st, ids, logger.Named("operations"))

	return &GenAI{
		Store:      st,
		LLM:        recorded,
		Batches:    coordinator,
		Scanner:    scanner,
		Operations: ops,
		logger:     logger,
	}
}

func (g *GenAI) SummarizeBatch(ctx context.Context, sel batch.Selector, prompt string, configID int64) (model.BatchSummary, error) {
	return g.Batches.RunBatch(ctx, sel, prompt, configID)
}

func (g *GenAI) ScanRelationships(ctx context.Context, collectionID, configID int64, types []string) (model.ScanResult, error) {
	return g.Scanner.Scan(ctx, collectionID, configID, types)
}

func (g *GenAI) ExecuteOperation(ctx context.Context, req operations.Request) (operations.Response, error) {
	return g.Operations.Execute(ctx, req)
}

func (g *GenAI) CreateItem(ctx context.Context, e model.Entity) (model.Entity, error) {
	e.Name = strings.TrimSpace(e.Name)
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	if e.Name == "" {
		return model.Entity{}, apperr.InvalidArgument("item name is required")
	}
	if e.Type == "" {
		return model.Entity{}, apperr.InvalidArgument("item type is required")
	}
	if e.Type == model.TypeCollection {
		return model.Entity{}, apperr.InvalidArgument("use POST /api/collections to create collections")
	}
	created, err := g.Store.CreateItem(ctx, e)
	if err != nil {
		return model.Entity{}, apperr.Internal(err, "failed to create item")
	}
	return created, nil
}

func (g *GenAI) GetItem(ctx context.Context, id int64) (*model.Entity, error) {
	e, err := g.Store.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Item with ID %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load item %d", id)
	}
	return e, nil
}

func (g *GenAI) ListItems(ctx context.Context, types []string) ([]model.Entity, error) {
	var (
		items []model.Entity
		err   error
	)
	if len(types) == 0 {
		items, err = g.Store.FindAll(ctx)
	} else {
		items, err = g.Store.FindByTypes(ctx, types)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to list items")
	}
	return items, nil
}

// UpdateItemAttributes merges patch into the item's attributes; null values
// delete keys.
func (g *GenAI) UpdateItemAttributes(ctx context.Context, id int64, patch model.Attributes) (*model.Entity, error) {
	current, err := g.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	attrs := current.Attributes.Clone()
	if attrs == nil {
		attrs = model.Attributes{}
	}
	attrs.Merge(patch)

	e, err := g.Store.UpdateAttributes(ctx, id, attrs)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Item with ID %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to update item %d", id)
	}
	return e, nil
}

// CreateCollection allocates a collection id, stores its definition and adds
// the given members.
func (g *GenAI) CreateCollection(ctx context.Context, name, description string, memberIDs []int64) (*model.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.InvalidArgument("collection name is required")
	}
	if err := g.requireItems(ctx, memberIDs); err != nil {
		return nil, err
	}

	id, err := g.Store.NextValue(ctx, driver.SeqCollection)
	if err != nil {
		return nil, apperr.Internal(err, "failed to allocate collection id")
	}

	var attrs model.Attributes
	if description != "" {
		attrs = model.Attributes{model.RelAttrDescription: description}
	}
	if _, err := g.Store.SaveRelationship(ctx, model.RelationshipRecord{
		RelationshipType: model.RelCollectionDefinition,
		SourceType:       model.EndpointCollection,
		SourceID:         id,
		TargetType:       model.EndpointCollection,
		TargetID:         id,
		Name:             name,
		Attributes:       attrs,
	}); err != nil {
		return nil, apperr.Internal(err, "failed to save collection definition")
	}

	if _, err := g.addMembers(ctx, id, memberIDs); err != nil {
		return nil, err
	}

	g.logger.Info("Collection created",
		zap.Int64("collection_id", id),
		zap.Int("members", len(memberIDs)))
	return &model.Collection{ID: id, Name: name, Description: description}, nil
}

// AddMembers adds items to a collection, skipping items that are already
// members. It returns the number of new members.
func (g *GenAI) AddMembers(ctx context.Context, collectionID int64, itemIDs []int64) (int, error) {
	if _, err := batch.FindCollection(ctx, g.Store, collectionID); err != nil {
		return 0, err
	}
	if err := g.requireItems(ctx, itemIDs); err != nil {
		return 0, err
	}
	return g.addMembers(ctx, collectionID, itemIDs)
}

func (g *GenAI) addMembers(ctx context.Context, collectionID int64, itemIDs []int64) (int, error) {
	existing, err := g.Store.FindCollectionMembers(ctx, collectionID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to load members of collection %d", collectionID)
	}
	seen := make(map[int64]struct{}, len(existing)+len(itemIDs))
	for _, e := range existing {
		seen[e.ID] = struct{}{}
	}

	added := 0
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, err := g.Store.SaveRelationship(ctx, model.RelationshipRecord{
			RelationshipType: model.RelCollection,
			SourceType:       model.EndpointItem,
			SourceID:         id,
			TargetType:       model.EndpointCollection,
			TargetID:         collectionID,
		}); err != nil {
			return added, apperr.Internal(err, "failed to add item %d to collection %d", id, collectionID)
		}
		added++
	}
	return added, nil
}

func (g *GenAI) requireItems(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := g.Store.FindByIDs(ctx, ids)
	if err != nil {
		return apperr.Internal(err, "failed to load items")
	}
	present := make(map[int64]struct{}, len(found))
	for _, e := range found {
		present[e.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			return apperr.NotFound("Item with ID %d not found", id)
		}
	}
	return nil
}

func (g *GenAI) CollectionMembers(ctx context.Context, collectionID int64) ([]model.Entity, error) {
	if _, err := batch.FindCollection(ctx, g.Store, collectionID); err != nil {
		return nil, err
	}
	members, err := g.Store.FindCollectionMembers(ctx, collectionID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load members of collection %d", collectionID)
	}
	return members, nil
}

func (g *GenAI) CreateConfiguration(ctx context.Context, c model.ModelConfiguration) (model.ModelConfiguration, error) {
	c.Model.Name = strings.TrimSpace(c.Model.Name)
	if c.Model.Name == "" {
		return model.ModelConfiguration{}, apperr.InvalidArgument("modelName is required")
	}
	if c.Model.Provider != "" {
		c.Model.Provider = llm.NormalizeProvider(c.Model.Provider, "")
		switch c.Model.Provider {
		case "openai", "claude", "gemini", "ollama":
		default:
			return model.ModelConfiguration{}, apperr.InvalidArgument("unsupported model provider %q", c.Model.Provider)
		}
	}
	if t := c.Params.Temperature; t != nil && (*t < 0 || *t > 2) {
		return model.ModelConfiguration{}, apperr.InvalidArgument("temperature must be between 0 and 2")
	}
	if p := c.Params.TopP; p != nil && (*p < 0 || *p > 1) {
		return model.ModelConfiguration{}, apperr.InvalidArgument("top_p must be between 0 and 1")
	}
	if m := c.Params.MaxTokens; m != nil && *m < 1 {
		return model.ModelConfiguration{}, apperr.InvalidArgument("max_tokens must be positive")
	}

	created, err := g.Store.CreateConfiguration(ctx, c)
	if err != nil {
		return model.ModelConfiguration{}, apperr.Internal(err, "failed to create model configuration")
	}
	return created, nil
}

func (g *GenAI) GetConfiguration(ctx context.Context, id int64) (*model.ModelConfiguration, error) {
	return batch.FindConfiguration(ctx, g.Store, id)
}

func (g *GenAI) ListConfigurations(ctx context.Context) ([]model.ModelConfiguration, error) {
	configs, err := g.Store.ListConfigurations(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list model configurations")
	}
	return configs, nil
}

func (g *GenAI) Summaries(ctx context.Context, f store.SummaryFilter) ([]model.SummaryRecord, error) {
	out, err := g.Store.ListSummaries(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list summaries")
	}
	return out, nil
}

func (g *GenAI) Relationships(ctx context.Context, entityID int64) ([]model.RelationshipRecord, error) {
	out, err := g.Store.ListRelationshipsForItem(ctx, entityID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list relationships")
	}
	return out, nil
}

func (g *GenAI) ModelCalls(ctx context.Context, batchID *int64) ([]model.ModelCall, error) {
	out, err := g.Store.ListModelCalls(ctx, batchID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list model calls")
	}
	return out, nil
}
