package relationship

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
)

// MockInvoker answers each request through Respond and keeps every request.
type MockInvoker struct {
	Respond func(ctx context.Context, req llm.Request) (llm.Response, error)

	mu       sync.Mutex
	Requests []llm.Request
}

func (m *MockInvoker) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.Respond == nil {
		return llm.Response{Text: `{"hasRelationship": false, "relationshipType": "", "confidence": 0.1, "explanation": "unrelated"}`}, nil
	}
	return m.Respond(ctx, req)
}

func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// pairIs reports whether the prompt describes both named entities.
func pairIs(req llm.Request, a, b string) bool {
	return strings.Contains(req.UserPrompt, `"`+a+`"`) && strings.Contains(req.UserPrompt, `"`+b+`"`)
}

// MockResultStore fails every save.
type MockResultStore struct{}

func (MockResultStore) SaveSummary(ctx context.Context, s model.SummaryRecord) (model.SummaryRecord, error) {
	return model.SummaryRecord{}, errors.New("summary table locked")
}

type MockSequence struct {
	mu   sync.Mutex
	last int64
}

func (m *MockSequence) Next(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last++
	return m.last, nil
}
