package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Upload.MaxFileBytes != 20<<20 || cfg.Upload.MaxPapers != 10 || cfg.PDF.MeaningfulThreshold != 50 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Rasterizer.Density != 300 || cfg.Rasterizer.Width != 1200 || cfg.Rasterizer.PageTimeout != 15*time.Second {
		t.Fatalf("rasterizer defaults: %+v", cfg.Rasterizer)
	}
}

func TestLoadConfig_MergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "examprep.yaml")
	yml := `
listen: ":9090"
concurrency: 3
rasterizer:
  backend: fitz
  page_timeout: 20s
llm:
  provider: gemini
  model: gemini-2.5-pro
runlog:
  retention: 168h
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.Concurrency != 3 || cfg.Rasterizer.Backend != BackendFitz {
		t.Fatalf("file values: %+v", cfg)
	}
	if cfg.Rasterizer.PageTimeout != 20*time.Second || cfg.RunLog.Retention != 7*24*time.Hour {
		t.Fatalf("durations: %+v %+v", cfg.Rasterizer, cfg.RunLog)
	}
	if cfg.Rasterizer.Density != 300 || cfg.LLM.Temperature != 0.2 {
		t.Fatal("defaults lost for keys absent from the file")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("listen: [unclosed"), 0o644)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"EXAMPREP_LISTEN":       ":7000",
		"GROQ_API_KEY":          "gsk_1",
		"GEMINI_API_KEY":        "gem_1",
		"CLOUDINARY_CLOUD_NAME": "demo",
		"CLOUDINARY_API_KEY":    "ck",
		"CLOUDINARY_API_SECRET": "cs",
		"YOUTUBE_API_KEY":       "yt",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup)
	if cfg.Listen != ":7000" || cfg.LLM.APIKey != "gsk_1" || cfg.YouTube.APIKey != "yt" {
		t.Fatalf("groq env: %+v", cfg)
	}
	if cfg.Rasterizer.CloudName != "demo" || cfg.Rasterizer.APIKey != "ck" || cfg.Rasterizer.APISecret != "cs" {
		t.Fatalf("cloudinary env: %+v", cfg.Rasterizer)
	}

	cfg = DefaultConfig()
	cfg.LLM.Provider = "gemini"
	cfg.ApplyEnv(lookup)
	if cfg.LLM.APIKey != "gem_1" {
		t.Fatalf("gemini key: %q", cfg.LLM.APIKey)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	os.WriteFile(envFile, []byte("YOUTUBE_API_KEY=from-dotenv\n"), 0o644)
	t.Setenv("YOUTUBE_API_KEY", "")
	os.Unsetenv("YOUTUBE_API_KEY")

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.YouTube.APIKey != "from-dotenv" {
		t.Fatalf("youtube key: %q", cfg.YouTube.APIKey)
	}

	if _, err := Load("", filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("missing .env must be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"listen":      func(c *Config) { c.Listen = "" },
		"log_level":   func(c *Config) { c.LogLevel = "loud" },
		"concurrency": func(c *Config) { c.Concurrency = 0 },
		"max_papers":  func(c *Config) { c.Upload.MaxPapers = 0 },
		"languages":   func(c *Config) { c.OCR.Languages = nil },
		"threshold":   func(c *Config) { c.PDF.MeaningfulThreshold = 0 },
		"backend":     func(c *Config) { c.Rasterizer.Backend = "ghostscript" },
		"density":     func(c *Config) { c.Rasterizer.Density = 0 },
		"provider":    func(c *Config) { c.LLM.Provider = "claude" },
		"temperature": func(c *Config) { c.LLM.Temperature = 3 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected error", name)
			continue
		}
		key := strings.Split(name, "_")[0]
		if !strings.Contains(err.Error(), key) {
			t.Errorf("%s: error %q does not name the key", name, err)
		}
	}
}
