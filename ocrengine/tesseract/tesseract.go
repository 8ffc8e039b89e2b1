// Package tesseract implements ocrengine.Session on top of gosseract.
//
// A gosseract client is not safe for concurrent use: Recognize holds the
// engine mutex for the whole set-image/recognize sequence.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/hazyhaar/examprep/ocrengine"
)

// Config configures an Engine.
type Config struct {
	// Languages passed to tesseract (default: eng).
	Languages []string `json:"languages" yaml:"languages"`

	// MinImageBytes below which input is rejected (default: 1000).
	MinImageBytes int `json:"min_image_bytes" yaml:"min_image_bytes"`

	// Variables are set on the client after init (e.g. tessedit_char_whitelist).
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if len(c.Languages) == 0 {
		c.Languages = []string{"eng"}
	}
	if c.MinImageBytes <= 0 {
		c.MinImageBytes = ocrengine.DefaultMinImageBytes
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine wraps one tesseract client.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
	closed bool
}

// New initializes a tesseract client with the configured languages.
func New(cfg Config) (*Engine, error) {
	cfg.defaults()

	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: set language %v: %w", cfg.Languages, err)
	}
	for k, v := range cfg.Variables {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract: set variable %s: %w", k, err)
		}
	}

	cfg.Logger.Debug("tesseract engine initialized", "languages", cfg.Languages)
	return &Engine{client: client, cfg: cfg}, nil
}

// Opener returns an ocrengine.Opener creating a fresh Engine per call.
func Opener(cfg Config) ocrengine.Opener {
	return func(_ context.Context) (ocrengine.Session, error) {
		return New(cfg)
	}
}

// Recognize runs OCR on an encoded image. Calls are serialized.
func (e *Engine) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ocrengine.CheckImage(img, e.cfg.MinImageBytes); err != nil {
		return "", err
	}
	img, format, err := ocrengine.Normalize(img)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", ocrengine.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	if err := e.client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognize: %w", err)
	}

	e.cfg.Logger.DebugContext(ctx, "ocr done",
		"format", format,
		"image_bytes", len(img),
		"text_len", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Close terminates the client. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.client.Close()
}
