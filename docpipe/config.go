package docpipe

import (
	"log/slog"
	"time"

	"github.com/hazyhaar/examprep/rasterize"
)

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the largest accepted buffer (default: 20 MiB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// MeaningfulThreshold is the normalized text length a PDF text layer
	// must exceed to skip OCR (default: 50).
	MeaningfulThreshold int `json:"meaningful_threshold" yaml:"meaningful_threshold"`

	// Render controls page rasterization of scanned PDFs.
	Render rasterize.RenderOptions `json:"render" yaml:"render"`

	// PageTimeout bounds the render-and-fetch of one page (default: 15s).
	PageTimeout time.Duration `json:"page_timeout" yaml:"page_timeout"`

	// CleanupTimeout bounds the deletion of a rasterized resource
	// (default: 30s). Cleanup runs even after the caller has gone away.
	CleanupTimeout time.Duration `json:"cleanup_timeout" yaml:"cleanup_timeout"`

	// PagePlaceholder replaces the text of a failed page.
	PagePlaceholder string `json:"page_placeholder" yaml:"page_placeholder"`

	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 20 << 20
	}
	if c.MeaningfulThreshold <= 0 {
		c.MeaningfulThreshold = 50
	}
	c.Render = c.Render.WithDefaults()
	if c.PageTimeout <= 0 {
		c.PageTimeout = 15 * time.Second
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = 30 * time.Second
	}
	if c.PagePlaceholder == "" {
		c.PagePlaceholder = "[Error rendering page]"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
