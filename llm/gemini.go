package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini completes prompts with a Gemini model in JSON response mode.
type Gemini struct {
	cfg Config
}

// NewGemini validates cfg.
func NewGemini(cfg Config) (*Gemini, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("llm: gemini requires an api key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm: gemini requires a model")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{cfg: cfg}, nil
}

// Complete opens a client, sends prompt as one text part and returns the
// first text part of the answer.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.cfg.APIKey))
	if err != nil {
		return "", fmt.Errorf("llm: gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(float32(g.cfg.Temperature)),
		ResponseMIMEType: "application/json",
	}

	start := time.Now()
	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.cfg.Logger.WarnContext(ctx, "gemini call failed", "model", g.cfg.Model, "error", err)
		return "", fmt.Errorf("llm: gemini generate: %w", err)
	}
	text := firstText(resp)
	g.cfg.Logger.DebugContext(ctx, "gemini call done",
		"model", g.cfg.Model, "answer_len", len(text), "duration_ms", time.Since(start).Milliseconds())
	if text == "" {
		return "", errors.New("llm: gemini returned no text")
	}
	return text, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
