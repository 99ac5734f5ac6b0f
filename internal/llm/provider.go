package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"scbackend/internal/domain"
)

var ErrEmptyResponse = errors.New("llm returned no content")

type Provider interface {
	Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResponse, error)
}

type Config struct {
	Provider         string
	Model            string
	Timeout          time.Duration
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
	GeminiAPIKey     string
}

// NewProvider builds the configured provider. The returned provider is bound
// to cfg.Model so callers only fill in prompts.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}

	var p Provider
	switch cfg.Provider {
	case "openai":
		p = NewOpenAIProvider(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	case "claude":
		p = NewClaudeProvider(client, cfg.AnthropicBaseURL, cfg.AnthropicAPIKey)
	case "gemini":
		g, err := NewGeminiProvider(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		p = g
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	return WithModel(p, cfg.Model), nil
}

type modelProvider struct {
	Provider
	model string
}

// WithModel fills in req.Model when the caller left it empty.
func WithModel(p Provider, model string) Provider {
	if model == "" {
		return p
	}
	return modelProvider{Provider: p, model: model}
}

func (m modelProvider) Complete(ctx context.Context, req domain.LLMRequest) (domain.LLMResponse, error) {
	if req.Model == "" {
		req.Model = m.model
	}
	return m.Provider.Complete(ctx, req)
}
