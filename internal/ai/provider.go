package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lasher91/makemegame/internal/ai/anthropic"
	"github.com/Lasher91/makemegame/internal/ai/ollama"
	"github.com/Lasher91/makemegame/internal/ai/openai"
)

type Provider interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

type Config struct {
	Provider         string
	Model            string
	AnthropicKey     string
	AnthropicBaseURL string
	OpenAIKey        string
	OpenAIBaseURL    string
	OllamaHost       string
}

// DefaultModels is used when no model is configured for the chosen provider.
var DefaultModels = map[string]string{
	"anthropic": "claude-sonnet-4-5-20250929",
	"openai":    "gpt-4o",
	"ollama":    "llama3.1",
}

// NewProvider picks the backend named by c.Provider and resolves the model.
func NewProvider(c Config) (Provider, string, error) {
	name := strings.ToLower(strings.TrimSpace(c.Provider))
	if name == "" {
		name = "anthropic"
	}
	model := c.Model
	if model == "" {
		model = DefaultModels[name]
	}
	switch name {
	case "anthropic":
		return anthropic.New(c.AnthropicKey, c.AnthropicBaseURL), model, nil
	case "openai":
		return openai.New(c.OpenAIKey, c.OpenAIBaseURL), model, nil
	case "ollama":
		return ollama.New(c.OllamaHost), model, nil
	}
	return nil, "", fmt.Errorf("unknown ai provider %q", c.Provider)
}
