package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	m := c.client.GenerativeModel(req.Config.Model.APIModelName())
	if req.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}

	p := req.Config.Params
	if p.Temperature != nil {
		m.SetTemperature(*p.Temperature)
	}
	if p.TopP != nil {
		m.SetTopP(*p.TopP)
	}
	if p.MaxTokens != nil {
		m.SetMaxOutputTokens(int32(*p.MaxTokens))
	}
	if req.Schema != nil {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.UserPrompt))
	if err != nil {
		return Response{}, fmt.Errorf("gemini generate content: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
	}
	if sb.Len() == 0 {
		return Response{}, ErrEmptyResponse
	}

	out := Response{Text: sb.String()}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}
