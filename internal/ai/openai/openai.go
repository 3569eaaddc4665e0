package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Lasher91/makemegame/internal/ai/chat"
)

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
	http      *http.Client
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &Client{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), MaxTokens: 8000, http: &http.Client{Timeout: 120 * time.Second}}
}

func (c *Client) Complete(ctx context.Context, model string, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, model, "", prompt)
}

func (c *Client) CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}
	ep := chat.Endpoint{
		Provider: "openai",
		URL:      c.BaseURL + "/v1/chat/completions",
		Header:   http.Header{"Authorization": {"Bearer " + c.APIKey}},
		Client:   c.http,
	}
	var out struct {
		Choices []struct {
			Message chat.Message `json:"message"`
		} `json:"choices"`
	}
	err := ep.Post(ctx, map[string]any{
		"model":       model,
		"messages":    chat.Messages(systemPrompt, prompt),
		"temperature": 0.9,
		"max_tokens":  c.MaxTokens,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
