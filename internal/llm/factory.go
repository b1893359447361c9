package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/agenthands/genai/internal/config"
)

// NewClient builds the invoker for one provider.
func NewClient(ctx context.Context, provider string, cfg config.ProviderConfig) (ModelInvoker, error) {
	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey)

	case "claude":
		return NewClaudeClient(cfg.APIKey, cfg.BaseURL), nil

	case "ollama":
		// Ollama speaks the OpenAI API under /v1, which also reports usage.
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAIClient(apiKey, OllamaBaseURL(cfg.BaseURL)), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

func OllamaBaseURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL
	}
	return fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
}

// NormalizeProvider maps provider aliases to the names NewClient accepts.
func NormalizeProvider(name, fallback string) string {
	p := strings.ToLower(strings.TrimSpace(name))
	if p == "" {
		p = strings.ToLower(strings.TrimSpace(fallback))
	}
	switch p {
	case "anthropic":
		return "claude"
	case "google":
		return "gemini"
	default:
		return p
	}
}

// Router dispatches each request to the provider named by its model
// configuration. Clients are built on first use and cached per provider and
// endpoint.
type Router struct {
	cfg       config.LLMConfig
	newClient func(ctx context.Context, provider string, cfg config.ProviderConfig) (ModelInvoker, error)

	mu      sync.Mutex
	clients map[string]ModelInvoker
}

func NewRouter(cfg config.LLMConfig) *Router {
	return &Router{
		cfg:       cfg,
		newClient: NewClient,
		clients:   make(map[string]ModelInvoker),
	}
}

func (r *Router) Generate(ctx context.Context, req Request) (Response, error) {
	client, err := r.client(ctx, req)
	if err != nil {
		return Response{}, err
	}
	return client.Generate(ctx, req)
}

func (r *Router) client(ctx context.Context, req Request) (ModelInvoker, error) {
	provider := NormalizeProvider(req.Config.Model.Provider, r.cfg.Provider)
	pcfg := r.cfg.For(provider)
	if pcfg == nil {
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
	pc := *pcfg
	// A configuration-level API URL overrides the provider default.
	if req.Config.Model.APIURL != "" {
		pc.BaseURL = req.Config.Model.APIURL
	}

	key := provider + "|" + pc.BaseURL
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c, err := r.newClient(context.WithoutCancel(ctx), provider, pc)
	if err != nil {
		return nil, fmt.Errorf("init %s client: %w", provider, err)
	}
	r.clients[key] = c
	return c, nil
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, c := range r.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				return fmt.Errorf("close %s client: %w", key, err)
			}
		}
		delete(r.clients, key)
	}
	return nil
}
