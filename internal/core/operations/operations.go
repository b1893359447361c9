// Package operations runs the collection-level operations exposed by
// POST /api/operations/execute.
package operations

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/core/batch"
	"github.com/agenthands/genai/internal/core/community"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/core/summary"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/sequence"
	"github.com/agenthands/genai/internal/store"
)

const (
	OpSummarizeEach         = "summarize_each"
	OpSummarizeGroup        = "summarize_group"
	OpGenerateRelationships = "generate_relationships"
	OpGroupRelated          = "group_related"
)

const statusSuccess = "success"

type Parameters struct {
	Prompt            string   `json:"prompt,omitempty"`
	RelationshipTypes []string `json:"relationshipTypes,omitempty"`
	Algorithm         string   `json:"algorithm,omitempty"`
}

type Request struct {
	OperationID          string     `json:"operationId"`
	ModelConfigurationID int64      `json:"modelConfigurationId"`
	CollectionID         int64      `json:"collectionId"`
	Parameters           Parameters `json:"parameters"`
}

type Response struct {
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Results     any    `json:"results,omitempty"`
}

// GroupSummary is the result of summarize_group.
type GroupSummary struct {
	SummaryID      int64 `json:"summaryId"`
	CollectionID   int64 `json:"collectionId"`
	EntityCount    int   `json:"entityCount"`
	RelationshipID int64 `json:"relationshipId"`
	BatchID        int64 `json:"batchId"`
}

// Groups is the result of group_related.
type Groups struct {
	CollectionID  int64     `json:"collectionId"`
	Algorithm     string    `json:"algorithm"`
	Relationships int       `json:"relationshipsConsidered"`
	Clusters      [][]int64 `json:"clusters"`
}

type BatchRunner interface {
	RunBatch(ctx context.Context, sel batch.Selector, systemPrompt string, configID int64) (model.BatchSummary, error)
}

type RelationshipScanner interface {
	Scan(ctx context.Context, collectionID, configID int64, candidateTypes []string) (model.ScanResult, error)
}

// Store is the persistence the operations read and write directly.
type Store interface {
	store.EntityStore
	store.ConfigStore
	store.ResultStore
	store.RelationshipStore
	ListRelationshipsAmong(ctx context.Context, ids []int64) ([]model.RelationshipRecord, error)
}

type Service struct {
	batches    BatchRunner
	scanner    RelationshipScanner
	summarizer *summary.Summarizer
	store      Store
	ids        sequence.Generator
	logger     *zap.Logger
}

func NewService(batches BatchRunner, scanner RelationshipScanner, summarizer *summary.Summarizer, st Store, ids sequence.Generator, logger *zap.Logger) *Service {
	return &Service{
		batches:    batches,
		scanner:    scanner,
		summarizer: summarizer,
		store:      st,
		ids:        ids,
		logger:     logger,
	}
}

// Execute dispatches on OperationID. Request-level failures are returned as
// *apperr.Error.
func (s *Service) Execute(ctx context.Context, req Request) (Response, error) {
	s.logger.Debug("Executing operation",
		zap.String("operation", req.OperationID),
		zap.Int64("collection_id", req.CollectionID))

	switch req.OperationID {
	case OpSummarizeEach, OpSummarizeGroup, OpGenerateRelationships, OpGroupRelated:
	default:
		return Response{}, apperr.InvalidArgument("Unknown operation: %s", req.OperationID)
	}
	if req.CollectionID <= 0 {
		return Response{}, apperr.InvalidArgument("Collection ID is required")
	}

	switch req.OperationID {
	case OpSummarizeEach:
		res, err := s.batches.RunBatch(ctx, batch.ByCollection(req.CollectionID), req.Parameters.Prompt, req.ModelConfigurationID)
		if err != nil {
			return Response{}, err
		}
		return s.respond(req, fmt.Sprintf("Successfully created %d summaries", res.SuccessCount), res), nil

	case OpSummarizeGroup:
		res, err := s.SummarizeGroup(ctx, req.CollectionID, req.ModelConfigurationID)
		if err != nil {
			return Response{}, err
		}
		return s.respond(req, "Successfully created collection summary", res), nil

	case OpGenerateRelationships:
		res, err := s.scanner.Scan(ctx, req.CollectionID, req.ModelConfigurationID, req.Parameters.RelationshipTypes)
		if err != nil {
			return Response{}, err
		}
		return s.respond(req, fmt.Sprintf("Successfully generated %d relationships", res.RelationshipCount), res), nil

	default:
		res, err := s.GroupRelated(ctx, req.CollectionID, req.Parameters.Algorithm)
		if err != nil {
			return Response{}, err
		}
		return s.respond(req, fmt.Sprintf("Found %d groups", len(res.Clusters)), res), nil
	}
}

func (s *Service) respond(req Request, message string, results any) Response {
	return Response{
		OperationID: req.OperationID,
		Status:      statusSuccess,
		Message:     message,
		Results:     results,
	}
}

// SummarizeGroup writes one summary for the whole collection and links it to
// the collection with a summarizes relationship.
func (s *Service) SummarizeGroup(ctx context.Context, collectionID, configID int64) (GroupSummary, error) {
	coll, err := batch.FindCollection(ctx, s.store, collectionID)
	if err != nil {
		return GroupSummary{}, err
	}
	mc, err := batch.FindConfiguration(ctx, s.store, configID)
	if err != nil {
		return GroupSummary{}, err
	}
	members, err := s.store.FindCollectionMembers(ctx, collectionID)
	if err != nil {
		return GroupSummary{}, apperr.Internal(err, "failed to load members of collection %d", collectionID)
	}

	batchID, err := s.ids.Next(ctx)
	if err != nil {
		return GroupSummary{}, apperr.Wrap(err, apperr.CodeUnavailable, "failed to allocate batch id")
	}
	ctx = llm.WithCallContext(ctx, batchID, fmt.Sprintf("collection_summary:%d", collectionID))

	text, err := s.summarizer.SummarizeCollection(ctx, *coll, members, *mc)
	if err != nil {
		return GroupSummary{}, apperr.Wrap(err, apperr.CodeUnavailable, "failed to summarize collection %d", collectionID)
	}

	saved, err := s.store.SaveSummary(ctx, model.SummaryRecord{
		EntityID:             collectionID,
		EntityType:           model.SummaryOfCollection,
		Name:                 "Collection Summary: " + coll.Name,
		Content:              text,
		BatchID:              batchID,
		ModelConfigurationID: mc.ID,
	})
	if err != nil {
		return GroupSummary{}, apperr.Internal(err, "failed to save collection summary")
	}

	link, err := s.store.SaveRelationship(ctx, model.RelationshipRecord{
		RelationshipType: model.RelSummarizes,
		SourceType:       model.EndpointSummary,
		SourceID:         saved.ID,
		TargetType:       model.EndpointCollection,
		TargetID:         collectionID,
		Name:             "Summary of Collection",
	})
	if err != nil {
		return GroupSummary{}, apperr.Internal(err, "failed to link summary %d to collection %d", saved.ID, collectionID)
	}

	s.logger.Info("Collection summarized",
		zap.Int64("batch_id", batchID),
		zap.Int64("collection_id", collectionID),
		zap.Int("members", len(members)),
		zap.Int64("summary_id", saved.ID))

	return GroupSummary{
		SummaryID:      saved.ID,
		CollectionID:   collectionID,
		EntityCount:    len(members),
		RelationshipID: link.ID,
		BatchID:        batchID,
	}, nil
}

// GroupRelated clusters collection members over the item relationships
// among them. No model is called.
func (s *Service) GroupRelated(ctx context.Context, collectionID int64, algorithm string) (Groups, error) {
	detector, err := community.NewDetector(algorithm)
	if err != nil {
		return Groups{}, apperr.InvalidArgument("%v", err)
	}
	if algorithm == "" {
		algorithm = community.AlgorithmLabelPropagation
	}

	if _, err := batch.FindCollection(ctx, s.store, collectionID); err != nil {
		return Groups{}, err
	}
	members, err := s.store.FindCollectionMembers(ctx, collectionID)
	if err != nil {
		return Groups{}, apperr.Internal(err, "failed to load members of collection %d", collectionID)
	}

	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	edges, err := s.store.ListRelationshipsAmong(ctx, ids)
	if err != nil {
		return Groups{}, apperr.Internal(err, "failed to load relationships of collection %d", collectionID)
	}

	clusters := detector.Detect(ids, edges)
	if clusters == nil {
		clusters = [][]int64{}
	}
	return Groups{
		CollectionID:  collectionID,
		Algorithm:     algorithm,
		Relationships: len(edges),
		Clusters:      clusters,
	}, nil
}
