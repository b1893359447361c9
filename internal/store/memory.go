package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/genai/internal/core/model"
)

// MemoryStore keeps everything in process. Rows are copied on the way in and
// out so callers never share attribute maps with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	seq           map[string]int64
	items         map[int64]model.Entity
	relationships []model.RelationshipRecord
	summaries     []model.SummaryRecord
	configs       map[int64]model.ModelConfiguration
	calls         []model.ModelCall

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seq:     make(map[string]int64),
		items:   make(map[int64]model.Entity),
		configs: make(map[int64]model.ModelConfiguration),
		now:     time.Now,
	}
}

func (m *MemoryStore) next(name string) int64 {
	m.seq[name]++
	return m.seq[name]
}

// NextValue serves the batch id sequence when running without Memgraph.
func (m *MemoryStore) NextValue(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next("seq:" + name), nil
}

func copyEntity(e model.Entity) model.Entity {
	e.Attributes = e.Attributes.Clone()
	return e
}

func (m *MemoryStore) CreateItem(_ context.Context, e model.Entity) (model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = m.next("item")
	e.CreatedAt = m.now()
	e.UpdatedAt = e.CreatedAt
	m.items[e.ID] = copyEntity(e)
	return copyEntity(e), nil
}

func (m *MemoryStore) UpdateAttributes(_ context.Context, id int64, attrs model.Attributes) (*model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.Attributes = attrs.Clone()
	e.UpdatedAt = m.now()
	m.items[id] = e
	out := copyEntity(e)
	return &out, nil
}

func (m *MemoryStore) FindByID(_ context.Context, id int64) (*model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyEntity(e)
	return &out, nil
}

func (m *MemoryStore) filterItems(keep func(model.Entity) bool) []model.Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Entity
	for _, e := range m.items {
		if keep(e) {
			out = append(out, copyEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) FindAll(_ context.Context) ([]model.Entity, error) {
	return m.filterItems(func(model.Entity) bool { return true }), nil
}

func (m *MemoryStore) FindByTypes(_ context.Context, types []string) ([]model.Entity, error) {
	want := make(map[string]struct{}, len(types))
	for _, t := range types {
		want[t] = struct{}{}
	}
	return m.filterItems(func(e model.Entity) bool {
		_, ok := want[e.Type]
		return ok
	}), nil
}

func (m *MemoryStore) FindByIDs(_ context.Context, ids []int64) ([]model.Entity, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return m.filterItems(func(e model.Entity) bool {
		_, ok := want[e.ID]
		return ok
	}), nil
}

func (m *MemoryStore) FindCollection(_ context.Context, id int64) (*model.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.relationships {
		if r.RelationshipType == model.RelCollectionDefinition && r.TargetType == model.EndpointCollection && r.TargetID == id {
			return &model.Collection{
				ID:          id,
				Name:        r.Name,
				Description: r.Attributes.String(model.RelAttrDescription),
			}, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindCollectionMembers(_ context.Context, id int64) ([]model.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[int64]struct{})
	var out []model.Entity
	for _, r := range m.relationships {
		if r.RelationshipType != model.RelCollection || r.SourceType != model.EndpointItem ||
			r.TargetType != model.EndpointCollection || r.TargetID != id {
			continue
		}
		if _, dup := seen[r.SourceID]; dup {
			continue
		}
		e, ok := m.items[r.SourceID]
		if !ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		out = append(out, copyEntity(e))
	}
	return out, nil
}

func (m *MemoryStore) CreateConfiguration(_ context.Context, c model.ModelConfiguration) (model.ModelConfiguration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.next("model_configuration")
	c.CreatedAt = m.now()
	m.configs[c.ID] = c
	return c, nil
}

func (m *MemoryStore) FindConfiguration(_ context.Context, id int64) (*model.ModelConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.configs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) ListConfigurations(_ context.Context) ([]model.ModelConfiguration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ModelConfiguration, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) SaveSummary(_ context.Context, s model.SummaryRecord) (model.SummaryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.ID = m.next("summary")
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	m.summaries = append(m.summaries, s)
	return s, nil
}

func (m *MemoryStore) ListSummaries(_ context.Context, f SummaryFilter) ([]model.SummaryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.SummaryRecord
	for _, s := range m.summaries {
		if f.BatchID != nil && s.BatchID != *f.BatchID {
			continue
		}
		if f.EntityID != nil && s.EntityID != *f.EntityID {
			continue
		}
		if f.EntityType != "" && s.EntityType != f.EntityType {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) SaveRelationship(_ context.Context, r model.RelationshipRecord) (model.RelationshipRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.next("relationship")
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	r.Attributes = r.Attributes.Clone()
	m.relationships = append(m.relationships, r)

	out := r
	out.Attributes = r.Attributes.Clone()
	return out, nil
}

func (m *MemoryStore) listRelationships(keep func(model.RelationshipRecord) bool) []model.RelationshipRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.RelationshipRecord
	for _, r := range m.relationships {
		if keep(r) {
			r.Attributes = r.Attributes.Clone()
			out = append(out, r)
		}
	}
	return out
}

func (m *MemoryStore) ListRelationshipsForItem(_ context.Context, id int64) ([]model.RelationshipRecord, error) {
	return m.listRelationships(func(r model.RelationshipRecord) bool {
		return (r.SourceType == model.EndpointItem && r.SourceID == id) ||
			(r.TargetType == model.EndpointItem && r.TargetID == id)
	}), nil
}

func (m *MemoryStore) ListRelationshipsAmong(_ context.Context, ids []int64) ([]model.RelationshipRecord, error) {
	in := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		in[id] = struct{}{}
	}
	return m.listRelationships(func(r model.RelationshipRecord) bool {
		if r.SourceType != model.EndpointItem || r.TargetType != model.EndpointItem {
			return false
		}
		_, src := in[r.SourceID]
		_, dst := in[r.TargetID]
		return src && dst
	}), nil
}

func (m *MemoryStore) SaveModelCall(_ context.Context, call model.ModelCall) (model.ModelCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call.ID = m.next("model_call")
	m.calls = append(m.calls, call)
	return call, nil
}

func (m *MemoryStore) ListModelCalls(_ context.Context, batchID *int64) ([]model.ModelCall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ModelCall
	for _, c := range m.calls {
		if batchID != nil && c.BatchID != *batchID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
