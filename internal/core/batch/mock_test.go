package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/store"
)

// MockInvoker records requests and answers through Respond. It also tracks
// the highest number of calls it saw in flight at once.
type MockInvoker struct {
	Respond func(ctx context.Context, req llm.Request) (llm.Response, error)

	mu       sync.Mutex
	Requests []llm.Request

	inflight    atomic.Int32
	MaxInflight atomic.Int32
}

func (m *MockInvoker) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	cur := m.inflight.Add(1)
	defer m.inflight.Add(-1)
	for {
		seen := m.MaxInflight.Load()
		if cur <= seen || m.MaxInflight.CompareAndSwap(seen, cur) {
			break
		}
	}

	if m.Respond == nil {
		return llm.Response{Text: "A concise summary."}, nil
	}
	return m.Respond(ctx, req)
}

func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// MockConfigStore counts lookups so tests can assert a configuration was
// never resolved.
type MockConfigStore struct {
	Configs map[int64]model.ModelConfiguration
	Lookups atomic.Int32
}

func (m *MockConfigStore) FindConfiguration(ctx context.Context, id int64) (*model.ModelConfiguration, error) {
	m.Lookups.Add(1)
	c, ok := m.Configs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

// MockResultStore fails every save.
type MockResultStore struct {
	Err error
}

func (m *MockResultStore) SaveSummary(ctx context.Context, s model.SummaryRecord) (model.SummaryRecord, error) {
	return model.SummaryRecord{}, m.Err
}

// MockSequence hands out ids from a counter, or fails with Err.
type MockSequence struct {
	next atomic.Int64
	Err  error
}

func (m *MockSequence) Next(ctx context.Context) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.next.Add(1), nil
}

var errProvider = errors.New("provider unavailable")
