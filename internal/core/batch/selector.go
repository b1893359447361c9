package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/apperr"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/store"
)

type selectorKind int

const (
	selectAll selectorKind = iota
	selectTypes
	selectIDs
	selectCollection
)

// Selector names the entity set a batch runs over.
type Selector struct {
	kind         selectorKind
	types        []string
	ids          []int64
	collectionID int64
}

func All() Selector {
	return Selector{kind: selectAll}
}

// ByTypes selects entities of any of the given types. No types selects all.
func ByTypes(types ...string) Selector {
	if len(types) == 0 {
		return All()
	}
	return Selector{kind: selectTypes, types: types}
}

func ByIDs(ids ...int64) Selector {
	return Selector{kind: selectIDs, ids: ids}
}

// ByCollection selects the members of a collection in membership order.
func ByCollection(id int64) Selector {
	return Selector{kind: selectCollection, collectionID: id}
}

func (s Selector) String() string {
	switch s.kind {
	case selectTypes:
		return "types:" + strings.Join(s.types, ",")
	case selectIDs:
		return fmt.Sprintf("ids:%d", len(s.ids))
	case selectCollection:
		return fmt.Sprintf("collection:%d", s.collectionID)
	default:
		return "all"
	}
}

// Resolve loads the selected entities. An unknown collection is a NOT_FOUND
// request error.
func (s Selector) Resolve(ctx context.Context, entities store.EntityStore, logger *zap.Logger) ([]model.Entity, error) {
	switch s.kind {
	case selectTypes:
		found, err := entities.FindByTypes(ctx, s.types)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load items by type")
		}
		return found, nil

	case selectIDs:
		if len(s.ids) == 0 {
			return nil, nil
		}
		found, err := entities.FindByIDs(ctx, s.ids)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load items by id")
		}
		if len(found) < len(s.ids) {
			logger.Warn("Some requested items were not found",
				zap.Int("requested", len(s.ids)),
				zap.Int("found", len(found)))
		}
		return found, nil

	case selectCollection:
		if _, err := FindCollection(ctx, entities, s.collectionID); err != nil {
			return nil, err
		}
		members, err := entities.FindCollectionMembers(ctx, s.collectionID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load members of collection %d", s.collectionID)
		}
		return members, nil

	default:
		found, err := entities.FindAll(ctx)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load items")
		}
		return found, nil
	}
}

// FindCollection resolves a collection definition or returns a request error.
func FindCollection(ctx context.Context, entities store.EntityStore, id int64) (*model.Collection, error) {
	if id <= 0 {
		return nil, apperr.InvalidArgument("collection id must be positive, got %d", id)
	}
	coll, err := entities.FindCollection(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Collection with ID %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load collection %d", id)
	}
	return coll, nil
}

// FindConfiguration resolves a model configuration or returns a request
// error: 400 for a non-positive id, 404 for an unknown one.
func FindConfiguration(ctx context.Context, configs store.ConfigStore, id int64) (*model.ModelConfiguration, error) {
	if id <= 0 {
		return nil, apperr.InvalidArgument("modelConfigurationId must be a positive integer, got %d", id)
	}
	cfg, err := configs.FindConfiguration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Model configuration with ID %d not found", id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load model configuration %d", id)
	}
	return cfg, nil
}
