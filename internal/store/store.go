// Package store defines the persistence collaborators of the batch engine and
// provides a Memgraph-backed and an in-memory implementation.
package store

import (
	"context"
	"errors"

	"github.com/agenthands/genai/internal/core/model"
)

var ErrNotFound = errors.New("not found")

// EntityStore resolves the entity sets a batch runs over.
type EntityStore interface {
	FindByID(ctx context.Context, id int64) (*model.Entity, error)
	FindAll(ctx context.Context) ([]model.Entity, error)
	FindByTypes(ctx context.Context, types []string) ([]model.Entity, error)
	FindByIDs(ctx context.Context, ids []int64) ([]model.Entity, error)
	// FindCollection returns ErrNotFound when no collection_definition edge
	// targets id.
	FindCollection(ctx context.Context, id int64) (*model.Collection, error)
	// FindCollectionMembers lists members in membership order.
	FindCollectionMembers(ctx context.Context, id int64) ([]model.Entity, error)
}

type ConfigStore interface {
	FindConfiguration(ctx context.Context, id int64) (*model.ModelConfiguration, error)
}

// ResultStore is append-only: every call writes a new row with a new id.
type ResultStore interface {
	SaveSummary(ctx context.Context, s model.SummaryRecord) (model.SummaryRecord, error)
}

type RelationshipStore interface {
	SaveRelationship(ctx context.Context, r model.RelationshipRecord) (model.RelationshipRecord, error)
}

type SummaryFilter struct {
	BatchID    *int64
	EntityID   *int64
	EntityType string
}

// Store is the full persistence surface used by the service and the HTTP
// layer.
type Store interface {
	EntityStore
	ConfigStore
	ResultStore
	RelationshipStore

	CreateItem(ctx context.Context, e model.Entity) (model.Entity, error)
	UpdateAttributes(ctx context.Context, id int64, attrs model.Attributes) (*model.Entity, error)

	CreateConfiguration(ctx context.Context, c model.ModelConfiguration) (model.ModelConfiguration, error)
	ListConfigurations(ctx context.Context) ([]model.ModelConfiguration, error)

	ListSummaries(ctx context.Context, f SummaryFilter) ([]model.SummaryRecord, error)
	ListRelationshipsForItem(ctx context.Context, id int64) ([]model.RelationshipRecord, error)
	ListRelationshipsAmong(ctx context.Context, ids []int64) ([]model.RelationshipRecord, error)

	SaveModelCall(ctx context.Context, call model.ModelCall) (model.ModelCall, error)
	ListModelCalls(ctx context.Context, batchID *int64) ([]model.ModelCall, error)

	// NextValue increments the named counter; collection and batch ids are
	// drawn from it.
	NextValue(ctx context.Context, name string) (int64, error)
}
