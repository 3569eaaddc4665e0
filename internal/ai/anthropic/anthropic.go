package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Lasher91/makemegame/internal/ai/chat"
)

const apiVersion = "2023-06-01"

type Client struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
	http      *http.Client
}

func New(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &Client{APIKey: apiKey, BaseURL: strings.TrimRight(baseURL, "/"), MaxTokens: 8000, http: &http.Client{Timeout: 120 * time.Second}}
}

func (c *Client) Complete(ctx context.Context, model string, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, model, "", prompt)
}

func (c *Client) CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("missing ANTHROPIC_API_KEY")
	}
	ep := chat.Endpoint{
		Provider: "anthropic",
		URL:      c.BaseURL + "/v1/messages",
		Header:   http.Header{"X-Api-Key": {c.APIKey}, "Anthropic-Version": {apiVersion}},
		Client:   c.http,
	}
	// the system prompt is a top level field here, not a message
	payload := map[string]any{
		"model":      model,
		"max_tokens": c.MaxTokens,
		"messages":   chat.Messages("", prompt),
	}
	if systemPrompt != "" {
		payload["system"] = systemPrompt
	}
	var out struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := ep.Post(ctx, payload, &out); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic: no text content")
	}
	return strings.TrimSpace(sb.String()), nil
}
