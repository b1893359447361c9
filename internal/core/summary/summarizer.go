// Package summary writes collection-level summaries, splitting large
// collections into chunks and reducing the partial summaries.
package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core/common"
	"github.com/agenthands/genai/internal/core/model"
	"github.com/agenthands/genai/internal/llm"
)

const (
	DefaultChunkSize = 20
	DefaultAttempts  = 2
)

type Summarizer struct {
	LLM       llm.ModelInvoker
	Prompts   config.Prompts
	ChunkSize int
	// Attempts bounds the calls made per prompt; failed calls are retried.
	Attempts int
	logger   *zap.Logger
}

func NewSummarizer(invoker llm.ModelInvoker, prompts config.Prompts, logger *zap.Logger) *Summarizer {
	return &Summarizer{
		LLM:       invoker,
		Prompts:   prompts,
		ChunkSize: DefaultChunkSize,
		Attempts:  DefaultAttempts,
		logger:    logger,
	}
}

// SummarizeCollection summarizes the collection and its members. Collections
// larger than ChunkSize are summarized part by part and the parts reduced.
func (s *Summarizer) SummarizeCollection(ctx context.Context, coll model.Collection, members []model.Entity, cfg model.ModelConfiguration) (string, error) {
	size := s.chunkSize()

	// 1. Base case: small enough to fit in one prompt
	if len(members) <= size {
		return s.generate(ctx, s.Prompts.CollectionSummary, collectionContext(coll, members, ""), cfg)
	}

	// 2. Recursive case: summarize each chunk, then reduce
	chunks := chunk(members, size)
	var partials []string
	for i, part := range chunks {
		label := fmt.Sprintf("Part %d of %d", i+1, len(chunks))
		text, err := s.generate(ctx, s.Prompts.CollectionSummary, collectionContext(coll, part, label), cfg)
		if err != nil {
			if ctx.Err() != nil {
				return "", err
			}
			s.logger.Warn("Collection chunk summary failed",
				zap.Int64("collection_id", coll.ID),
				zap.String("part", label),
				zap.Error(err))
			continue
		}
		partials = append(partials, text)
	}
	if len(partials) == 0 {
		return "", fmt.Errorf("all %d parts of collection %d failed to summarize", len(chunks), coll.ID)
	}

	return s.reduce(ctx, coll, partials, cfg)
}

// reduce merges partial summaries, recursing while they exceed one chunk.
func (s *Summarizer) reduce(ctx context.Context, coll model.Collection, partials []string, cfg model.ModelConfiguration) (string, error) {
	if len(partials) == 1 {
		return partials[0], nil
	}
	size := s.chunkSize()
	if len(partials) <= size {
		return s.generate(ctx, s.Prompts.CollectionReduce, reduceContext(coll, partials), cfg)
	}

	var merged []string
	for _, group := range chunk(partials, size) {
		text, err := s.reduce(ctx, coll, group, cfg)
		if err != nil {
			return "", err
		}
		merged = append(merged, text)
	}
	return s.reduce(ctx, coll, merged, cfg)
}

func (s *Summarizer) generate(ctx context.Context, systemPrompt, userPrompt string, cfg model.ModelConfiguration) (string, error) {
	req := llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Config:       cfg,
	}
	return common.RetryWithContext(ctx, s.Attempts, func(ctx context.Context) (string, error) {
		resp, err := s.LLM.Generate(ctx, req)
		if err != nil {
			return "", fmt.Errorf("failed to generate collection summary: %w", err)
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", llm.ErrEmptyResponse
		}
		return text, nil
	})
}

func (s *Summarizer) chunkSize() int {
	if s.ChunkSize < 2 {
		return DefaultChunkSize
	}
	return s.ChunkSize
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for i := 0; i < len(items); i += size {
		out = append(out, items[i:min(i+size, len(items))])
	}
	return out
}

func collectionContext(coll model.Collection, members []model.Entity, part string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Collection: %s\n", coll.Name)
	description := coll.Description
	if description == "" {
		description = "No description"
	}
	fmt.Fprintf(&b, "Description: %s\n", description)
	if part != "" {
		fmt.Fprintf(&b, "%s\n", part)
	}
	fmt.Fprintf(&b, "Entities (%d):\n", len(members))
	for _, m := range members {
		fmt.Fprintf(&b, "- %s %d: %s", m.Type, m.ID, m.Name)
		if len(m.Attributes) > 0 {
			fmt.Fprintf(&b, " (%s)", m.Attributes.Format())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func reduceContext(coll model.Collection, partials []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Collection: %s\n", coll.Name)
	fmt.Fprintf(&b, "Partial summaries (%d):\n", len(partials))
	for i, p := range partials {
		fmt.Fprintf(&b, "\nPart %d:\n%s\n", i+1, p)
	}
	return b.String()
}
