// Package llm talks to the structured-extraction model. Both backends take
// one prompt string and return the raw answer text; parsing and validation
// belong to package prompt.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Completer sends a prompt and returns the raw model answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Providers.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Defaults for the Groq backend.
const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "openai/gpt-oss-120b"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTemperature = 0.2
	DefaultTimeout     = 120 * time.Second
)

// Config selects and configures a backend.
type Config struct {
	Provider    string        `json:"provider" yaml:"provider"`
	Model       string        `json:"model" yaml:"model"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	APIKey      string        `json:"-" yaml:"api_key"`
	Temperature float64       `json:"temperature" yaml:"temperature"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`

	HTTPClient *http.Client `json:"-" yaml:"-"`
	Logger     *slog.Logger `json:"-" yaml:"-"`
}

// New returns the Completer for cfg.Provider ("groq" when empty).
func New(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "", ProviderGroq, ProviderOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultGroqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultGroqModel
		}
		return NewChat(cfg)
	case ProviderGemini:
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		return NewGemini(cfg)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
}
