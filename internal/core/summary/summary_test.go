package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
)

var classics = model.Collection{ID: 7, Name: "Russian classics", Description: "19th century novels"}

func members(n int) []model.Entity {
	out := make([]model.Entity, n)
	for i := range out {
		out[i] = model.Entity{ID: int64(i + 1), Type: model.TypeBook, Name: fmt.Sprintf("Book %d", i+1)}
	}
	return out
}

func isReduce(req llm.Request) bool {
	return req.SystemPrompt == config.DefaultCollectionReducePrompt
}

func TestSummarizeCollection_SingleChunk(t *testing.T) {
	mock := &MockInvoker{}
	s := NewSummarizer(mock, config.Defaults().Prompts, zap.NewNop())

	books := []model.Entity{
		{ID: 1, Type: model.TypeBook, Name: "Anna Karenina", Attributes: model.Attributes{model.AttrAuthor: "Leo Tolstoy"}},
		{ID: 2, Type: model.TypeBook, Name: "Oblomov"},
	}
	got, err := s.SummarizeCollection(context.Background(), classics, books, model.ModelConfiguration{ID: 3})
	require.NoError(t, err)
	assert.Equal(t, "A summary.", got)

	require.Len(t, mock.Requests, 1)
	req := mock.Requests[0]
	assert.Equal(t, config.DefaultCollectionSummaryPrompt, req.SystemPrompt)
	assert.Equal(t, int64(3), req.Config.ID)
	assert.Equal(t, "Collection: Russian classics\n"+
		"Description: 19th century novels\n"+
		"Entities (2):\n"+
		"- book 1: Anna Karenina (author: Leo Tolstoy)\n"+
		"- book 2: Oblomov\n", req.UserPrompt)
}

func TestSummarizeCollection_ChunksAndReduces(t *testing.T) {
	mock := &MockInvoker{Respond: func(req llm.Request) (llm.Response, error) {
		if isReduce(req) {
			return llm.Response{Text: "merged"}, nil
		}
		return llm.Response{Text: "partial"}, nil
	}}
	s := NewSummarizer(mock, config.Defaults().Prompts, zap.NewNop())
	s.ChunkSize = 3

	got, err := s.SummarizeCollection(context.Background(), classics, members(7), model.ModelConfiguration{})
	require.NoError(t, err)
	assert.Equal(t, "merged", got)

	require.Len(t, mock.Requests, 4)
	assert.Contains(t, mock.Requests[0].UserPrompt, "Part 1 of 3")
	assert.Contains(t, mock.Requests[2].UserPrompt, "Entities (1):")
	assert.True(t, isReduce(mock.Requests[3]))
	assert.Contains(t, mock.Requests[3].UserPrompt, "Partial summaries (3):")
}

func TestSummarizeCollection_RecursiveReduce(t *testing.T) {
	mock := &MockInvoker{Respond: func(req llm.Request) (llm.Response, error) {
		if isReduce(req) {
			return llm.Response{Text: "merged"}, nil
		}
		return llm.Response{Text: "partial"}, nil
	}}
	s := NewSummarizer(mock, config.Defaults().Prompts, zap.NewNop())
	s.ChunkSize = 2

	// 5 members -> 3 partials -> reduce(2) + passthrough(1) -> reduce(2)
	got, err := s.SummarizeCollection(context.Background(), classics, members(5), model.ModelConfiguration{})
	require.NoError(t, err)
	assert.Equal(t, "merged", got)

	reduces := 0
	for _, r := range mock.Requests {
		if isReduce(r) {
			reduces++
		}
	}
	assert.Len(t, mock.Requests, 5)
	assert.Equal(t, 2, reduces)
}

func TestSummarizeCollection_SkipsFailedChunks(t *testing.T) {
	mock := &MockInvoker{Respond: func(req llm.Request) (llm.Response, error) {
		if strings.Contains(req.UserPrompt, "Part 2 of 2") {
			return llm.Response{}, errors.New("overloaded")
		}
		if isReduce(req) {
			return llm.Response{Text: "merged"}, nil
		}
		return llm.Response{Text: "partial one"}, nil
	}}
	s := NewSummarizer(mock, config.Defaults().Prompts, zap.NewNop())
	s.ChunkSize = 2

	// a single surviving partial is returned as is
	got, err := s.SummarizeCollection(context.Background(), classics, members(4), model.ModelConfiguration{})
	require.NoError(t, err)
	assert.Equal(t, "partial one", got)
	// part 2 is tried DefaultAttempts times
	assert.Len(t, mock.Requests, 1+DefaultAttempts)
}

func TestSummarizeCollection_RetriesTransientFailure(t *testing.T) {
	calls := 0
	mock := &MockInvoker{Respond: func(req llm.Request) (llm.Response, error) {
		calls++
		if calls == 1 {
			return llm.Response{}, errors.New("connection reset")
		}
		return llm.Response{Text: "recovered"}, nil
	}}
	s := NewSummarizer(mock, config.Defaults().Prompts, zap.NewNop())

	got, err := s.SummarizeCollection(context.Background(), classics, members(2), model.ModelConfiguration{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Len(t, mock.Requests, 2)

	s.Attempts = 1
	calls = 0
	_, err = s.SummarizeCollection(context.Background(), classics, members(2), model.ModelConfiguration{})
	assert.ErrorContains(t, err, "connection reset")
}

func TestSummarizeCollection_Errors(t *testing.T) {
	failing := &MockInvoker{Respond: func(req llm.Request) (llm.Response, error) {
		return llm.Response{}, errors.New("overloaded")
	}}
	s := NewSummarizer(failing, config.Defaults().Prompts, zap.NewNop())
	s.ChunkSize = 2

	_, err := s.SummarizeCollection(context.Background(), classics, members(4), model.ModelConfiguration{})
	assert.ErrorContains(t, err, "all 2 parts of collection 7 failed")

	_, err = s.SummarizeCollection(context.Background(), classics, members(1), model.ModelConfiguration{})
	assert.ErrorContains(t, err, "overloaded")

	blank := &MockInvoker{Respond: func(req llm.Request) (llm.Response, error) {
		return llm.Response{Text: " "}, nil
	}}
	_, err = NewSummarizer(blank, config.Defaults().Prompts, zap.NewNop()).
		SummarizeCollection(context.Background(), classics, members(1), model.ModelConfiguration{})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}
