package llm

import (
	"context"
	"fmt"

	"github.com/tymonhq/tymon/internal/config"
)

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, prompt string) (*Response, error)
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

const (
	defaultMaxTokens   = 2048
	defaultTemperature = 0.3
)

// NewClient creates an LLM client based on the config provider setting.
// Provider "none" returns a nil client; callers degrade to memory-only operation.
func NewClient(cfg config.LLMConfig) (Client, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "anthropic":
		keys := SplitKeys(cfg.AnthropicKey)
		if len(keys) == 0 {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5"
		}
		clients := make([]Client, len(keys))
		for i, k := range keys {
			clients[i] = NewAnthropic(k, model, maxTokens)
		}
		return rotating(clients), nil
	case "openai":
		keys := SplitKeys(cfg.OpenAIKey)
		if len(keys) == 0 {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY or config")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		clients := make([]Client, len(keys))
		for i, k := range keys {
			clients[i] = NewOpenAI(k, cfg.OpenAIBaseURL, model, maxTokens)
		}
		return rotating(clients), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
