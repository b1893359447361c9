package summary

import (
	"context"
	"sync"

	"github.com/agenthands/genai/internal/llm"
)

// MockInvoker replies with Respond, or with a numbered reply when Respond is
// nil.
type MockInvoker struct {
	Respond func(req llm.Request) (llm.Response, error)

	mu       sync.Mutex
	Requests []llm.Request
}

func (m *MockInvoker) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(req)
	}
	return llm.Response{Text: "  A summary.\n"}, nil
}
