package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

// defaultClaudeMaxTokens applies when a configuration leaves max_tokens unset;
// the Messages API requires the field.
const defaultClaudeMaxTokens = 1000

type ClaudeClient struct {
	client *anthropic.Client
}

func NewClaudeClient(apiKey string, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeClient{client: anthropic.NewClient(apiKey, opts...)}
}

func (c *ClaudeClient) Generate(ctx context.Context, req Request) (Response, error) {
	params := req.Config.Params
	maxTokens := defaultClaudeMaxTokens
	if params.MaxTokens != nil {
		maxTokens = *params.MaxTokens
	}

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(req.Config.Model.APIModelName()),
		System: req.SystemPrompt,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(req.UserPrompt),
				},
			},
		},
		MaxTokens:   maxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
	})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, content := range resp.Content {
		if content.Text != nil {
			sb.WriteString(*content.Text)
		}
	}
	if sb.Len() == 0 {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Text: sb.String(),
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}, nil
}
