package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/agenthands/genai/internal/core/model"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

// ResponseSchema asks providers that support structured output to constrain
// the response to a JSON schema.
type ResponseSchema struct {
	Name   string
	Schema json.Marshaler
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	Config       model.ModelConfiguration
	Schema       *ResponseSchema
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Response struct {
	Text  string
	Usage Usage
}

// ModelInvoker turns a system and user prompt into generated text using the
// provider named by the request's model configuration.
type ModelInvoker interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// InvokerFunc adapts a function to ModelInvoker.
type InvokerFunc func(ctx context.Context, req Request) (Response, error)

func (f InvokerFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
