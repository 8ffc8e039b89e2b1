// Package config loads the examprep configuration: YAML file, then .env,
// then environment variables for secrets and the listen address.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full examprep configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`
	// Concurrency is how many papers of one batch are extracted at once.
	Concurrency int `yaml:"concurrency"`

	Upload     UploadConfig     `yaml:"upload"`
	OCR        OCRConfig        `yaml:"ocr"`
	PDF        PDFConfig        `yaml:"pdf"`
	Rasterizer RasterizerConfig `yaml:"rasterizer"`
	LLM        LLMConfig        `yaml:"llm"`
	YouTube    YouTubeConfig    `yaml:"youtube"`
	RunLog     RunLogConfig     `yaml:"runlog"`
}

// UploadConfig bounds one request.
type UploadConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes"`
	MaxPapers    int   `yaml:"max_papers"`
}

// OCRConfig configures tesseract.
type OCRConfig struct {
	Languages     []string          `yaml:"languages"`
	MinImageBytes int               `yaml:"min_image_bytes"`
	Variables     map[string]string `yaml:"variables"`
}

// PDFConfig configures the digital/scanned decision.
type PDFConfig struct {
	MeaningfulThreshold int `yaml:"meaningful_threshold"`
}

// Rasterizer backends.
const (
	BackendCloudinary = "cloudinary"
	BackendFitz       = "fitz"
)

// RasterizerConfig configures page rendering of scanned PDFs.
type RasterizerConfig struct {
	Backend     string        `yaml:"backend"`
	CloudName   string        `yaml:"cloud_name"`
	APIKey      string        `yaml:"api_key"`
	APISecret   string        `yaml:"api_secret"`
	Density     int           `yaml:"density"`
	Width       int           `yaml:"width"`
	PageTimeout time.Duration `yaml:"page_timeout"`
}

// LLMConfig configures the structured-extraction model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// YouTubeConfig configures the video index.
type YouTubeConfig struct {
	APIKey          string `yaml:"api_key"`
	EnrichOnAnalyze bool   `yaml:"enrich_on_analyze"`
}

// RunLogConfig configures the run ledger. An empty DBPath disables it.
type RunLogConfig struct {
	DBPath    string        `yaml:"db_path"`
	Retention time.Duration `yaml:"retention"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		LogLevel:    "info",
		Concurrency: 1,
		Upload: UploadConfig{
			MaxFileBytes: 20 << 20,
			MaxPapers:    10,
		},
		OCR: OCRConfig{
			Languages:     []string{"eng"},
			MinImageBytes: 1000,
		},
		PDF: PDFConfig{MeaningfulThreshold: 50},
		Rasterizer: RasterizerConfig{
			Backend:     BackendCloudinary,
			Density:     300,
			Width:       1200,
			PageTimeout: 15 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "openai/gpt-oss-120b",
			BaseURL:     "https://api.groq.com/openai/v1",
			Temperature: 0.2,
			Timeout:     120 * time.Second,
		},
		RunLog: RunLogConfig{
			DBPath:    "data/runlog.db",
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path returns
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Load is LoadConfig followed by .env loading, environment overrides and
// validation.
func Load(path, envFile string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// LoadDotEnv loads variables from envFile into the process environment
// without overriding variables already set. A missing file is ignored.
func LoadDotEnv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// ApplyEnv overrides secrets and the listen address from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "EXAMPREP_LISTEN")
	set(&c.Rasterizer.CloudName, "CLOUDINARY_CLOUD_NAME")
	set(&c.Rasterizer.APIKey, "CLOUDINARY_API_KEY")
	set(&c.Rasterizer.APISecret, "CLOUDINARY_API_SECRET")
	set(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
	switch c.LLM.Provider {
	case "gemini":
		set(&c.LLM.APIKey, "GEMINI_API_KEY")
	case "openai":
		set(&c.LLM.APIKey, "OPENAI_API_KEY")
	default:
		set(&c.LLM.APIKey, "GROQ_API_KEY")
	}
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1")
	}
	if c.Upload.MaxFileBytes <= 0 {
		return fmt.Errorf("upload.max_file_bytes must be > 0")
	}
	if c.Upload.MaxPapers <= 0 {
		return fmt.Errorf("upload.max_papers must be > 0")
	}
	if len(c.OCR.Languages) == 0 {
		return fmt.Errorf("ocr.languages must not be empty")
	}
	if c.PDF.MeaningfulThreshold <= 0 {
		return fmt.Errorf("pdf.meaningful_threshold must be > 0")
	}
	switch c.Rasterizer.Backend {
	case BackendCloudinary, BackendFitz:
	default:
		return fmt.Errorf("rasterizer.backend %q unsupported (use cloudinary or fitz)", c.Rasterizer.Backend)
	}
	if c.Rasterizer.Density <= 0 || c.Rasterizer.Width <= 0 {
		return fmt.Errorf("rasterizer.density and rasterizer.width must be > 0")
	}
	switch c.LLM.Provider {
	case "groq", "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider %q unsupported (use groq, openai or gemini)", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

// ParseLevel maps a log_level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level %q unsupported", s)
}
