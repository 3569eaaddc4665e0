package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Lasher91/makemegame/internal/ai/chat"
)

// Client runs completions against a local Ollama server. Full HTML games
// take minutes on local hardware.
type Client struct {
	chat chat.Endpoint
}

func New(host string) *Client {
	if host == "" {
		host = "http://localhost:11434"
	}
	return &Client{chat: chat.Endpoint{
		Provider: "ollama",
		URL:      strings.TrimRight(host, "/") + "/api/chat",
		Client:   &http.Client{Timeout: 5 * time.Minute},
	}}
}

func (c *Client) Complete(ctx context.Context, model string, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, model, "", prompt)
}

func (c *Client) CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error) {
	var reply struct {
		Message chat.Message `json:"message"`
	}
	req := map[string]any{"model": model, "messages": chat.Messages(systemPrompt, prompt), "stream": false}
	if err := c.chat.Post(ctx, req, &reply); err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply.Message.Content)
	if text == "" {
		return "", errors.New("ollama: empty reply")
	}
	return text, nil
}
