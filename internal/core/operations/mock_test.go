package operations

import (
	"context"
	"sync/atomic"

	"github.com/agenthands/genai/internal/core/batch"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
)

type MockBatchRunner struct {
	Result   model.BatchSummary
	Err      error
	Selector batch.Selector
	Prompt   string
	ConfigID int64
}

func (m *MockBatchRunner) RunBatch(ctx context.Context, sel batch.Selector, systemPrompt string, configID int64) (model.BatchSummary, error) {
	m.Selector, m.Prompt, m.ConfigID = sel, systemPrompt, configID
	return m.Result, m.Err
}

type MockScanner struct {
	Result       model.ScanResult
	Err          error
	CollectionID int64
	Types        []string
}

func (m *MockScanner) Scan(ctx context.Context, collectionID, configID int64, candidateTypes []string) (model.ScanResult, error) {
	m.CollectionID, m.Types = collectionID, candidateTypes
	return m.Result, m.Err
}

type MockInvoker struct {
	Text  string
	Err   error
	calls atomic.Int32
}

func (m *MockInvoker) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return llm.Response{}, m.Err
	}
	return llm.Response{Text: m.Text}, nil
}

type MockSequence struct {
	next atomic.Int64
}

func (m *MockSequence) Next(ctx context.Context) (int64, error) {
	return m.next.Add(1) + 1000, nil
}
