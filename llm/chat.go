package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hazyhaar/examprep/collab"
)

// Chat is an OpenAI-compatible chat completions client (Groq by default).
type Chat struct {
	cfg  Config
	call collab.Handler
}

// NewChat builds a chat completions client.
func NewChat(cfg Config) (*Chat, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: chat completions require an api key")
	}
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.New("llm: chat completions require base_url and model")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Chat{cfg: cfg}
	c.call = collab.Standard(cfg.Logger, "llm.chat", collab.NewCircuitBreaker(), cfg.Timeout)(
		collab.HTTPHandler(cfg.HTTPClient, c.build))
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Chat) build(ctx context.Context, payload []byte) (*http.Request, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Complete sends prompt as a single user message.
func (c *Chat) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}

	raw, err := c.call(ctx, payload)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("llm: decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
