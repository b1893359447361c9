package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/agenthands/genai/internal/core/model"
)

// OpenAIClient serves OpenAI and any OpenAI-compatible endpoint (Ollama).
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(config)}
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    req.Config.Model.APIModelName(),
		Messages: openAIMessages(req),
	}
	applyOpenAIParams(&chatReq, req.Config.Params)

	if req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: req.Schema.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	return append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})
}

func applyOpenAIParams(chatReq *openai.ChatCompletionRequest, p model.GenerationParams) {
	if p.Temperature != nil {
		chatReq.Temperature = *p.Temperature
	}
	if p.TopP != nil {
		chatReq.TopP = *p.TopP
	}
	if p.MaxTokens != nil {
		chatReq.MaxTokens = *p.MaxTokens
	}
	if p.FrequencyPenalty != nil {
		chatReq.FrequencyPenalty = *p.FrequencyPenalty
	}
	if p.PresencePenalty != nil {
		chatReq.PresencePenalty = *p.PresencePenalty
	}
}
