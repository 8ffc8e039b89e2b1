package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/examprep/config"
	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/ingest"
	"github.com/hazyhaar/examprep/llm"
	"github.com/hazyhaar/examprep/ocrengine/tesseract"
	"github.com/hazyhaar/examprep/prompt"
	"github.com/hazyhaar/examprep/rasterize"
	"github.com/hazyhaar/examprep/rasterize/mupdf"
	"github.com/hazyhaar/examprep/runlog"
	"github.com/hazyhaar/examprep/videoindex"
)

// app is the wired component graph shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipe     *docpipe.Pipeline
	orch     *ingest.Orchestrator
	analyzer *ingest.Analyzer // nil without model credentials
	index    *videoindex.Index
	runs     *runlog.Log

	closers []func() error
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	ocrCfg := tesseract.Config{
		Languages:     cfg.OCR.Languages,
		MinImageBytes: cfg.OCR.MinImageBytes,
		Variables:     cfg.OCR.Variables,
		Logger:        logger,
	}
	// Images share one engine (Recognize calls are serialized by it);
	// each scanned PDF opens and closes its own.
	engine, err := tesseract.New(ocrCfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, engine.Close)

	raster, err := newRasterizer(cfg, logger)
	if err != nil {
		return err
	}

	a.pipe = docpipe.New(docpipe.Config{
		MaxFileSize:         cfg.Upload.MaxFileBytes,
		MeaningfulThreshold: cfg.PDF.MeaningfulThreshold,
		Render: rasterize.RenderOptions{
			Density: cfg.Rasterizer.Density,
			Width:   cfg.Rasterizer.Width,
		},
		PageTimeout: cfg.Rasterizer.PageTimeout,
		Logger:      logger,
	}, docpipe.WithOCR(engine), docpipe.WithScopedOCR(tesseract.Opener(ocrCfg)), docpipe.WithRasterizer(raster))

	var orchOpts []ingest.OrchestratorOption
	if cfg.RunLog.DBPath != "" {
		runs, err := openRunLog(ctx, cfg.RunLog, logger)
		if err != nil {
			return err
		}
		a.runs = runs
		a.closers = append(a.closers, runs.Close)
		orchOpts = append(orchOpts, ingest.WithEventSink(runs))
	}

	a.orch = ingest.NewOrchestrator(a.pipe, ingest.Config{
		Concurrency: cfg.Concurrency,
		MaxPapers:   cfg.Upload.MaxPapers,
		Logger:      logger,
	}, orchOpts...)

	if cfg.YouTube.APIKey != "" {
		yt, err := videoindex.NewYouTube(ctx, videoindex.YouTubeConfig{APIKey: cfg.YouTube.APIKey, Logger: logger})
		if err != nil {
			return err
		}
		a.index = videoindex.New(yt, videoindex.WithLogger(logger))
	} else {
		logger.Warn("youtube api key not set; video routes disabled")
	}

	model, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Warn("structured extraction disabled", "provider", cfg.LLM.Provider, "error", err)
		return nil
	}
	builder, err := prompt.NewBuilder(prompt.DefaultRules())
	if err != nil {
		return err
	}
	analyzerOpts := []ingest.AnalyzerOption{ingest.WithAnalyzerLogger(logger)}
	if a.index != nil {
		analyzerOpts = append(analyzerOpts, ingest.WithEnricher(a.index))
	}
	a.analyzer = ingest.NewAnalyzer(a.orch, builder, model, analyzerOpts...)
	return nil
}

func newRasterizer(cfg *config.Config, logger *slog.Logger) (rasterize.Rasterizer, error) {
	switch cfg.Rasterizer.Backend {
	case config.BackendFitz:
		return mupdf.New(mupdf.Config{Logger: logger}), nil
	default:
		c, err := rasterize.NewCloudinary(rasterize.CloudinaryConfig{
			CloudName:    cfg.Rasterizer.CloudName,
			APIKey:       cfg.Rasterizer.APIKey,
			APISecret:    cfg.Rasterizer.APISecret,
			FetchTimeout: cfg.Rasterizer.PageTimeout,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Close releases components in reverse wiring order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// runTimeout bounds one CLI batch.
const runTimeout = 10 * time.Minute

// openRunLog opens the ledger and drops events older than the retention.
// A failed purge is logged and the ledger is used anyway.
func openRunLog(ctx context.Context, cfg config.RunLogConfig, logger *slog.Logger, opts ...runlog.Option) (*runlog.Log, error) {
	runs, err := runlog.Open(cfg.DBPath, append([]runlog.Option{runlog.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if _, err := runs.Purge(ctx, cfg.Retention); err != nil {
		logger.WarnContext(ctx, "runlog purge failed", "error", err)
	}
	return runs, nil
}
