// Package ingest drives a batch of uploaded exam papers (and an optional
// syllabus) through extraction, and turns the result into a structured
// extraction.
//
// Per-file failures abort the whole batch: a partial set of papers would
// skew the topic ranking, so the first failing file's error is returned
// and no text is produced.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/idgen"
	"github.com/hazyhaar/examprep/kit"
	"github.com/hazyhaar/examprep/runlog"
)

var (
	// ErrNoExtractedText is returned when the papers yield no text at all.
	ErrNoExtractedText = errors.New("ingest: no extracted text")

	// ErrNoPapers is returned for a batch without exam papers.
	ErrNoPapers = errors.New("ingest: no exam papers")

	// ErrTooManyPapers is returned when a batch exceeds Config.MaxPapers.
	ErrTooManyPapers = errors.New("ingest: too many exam papers")
)

// Extractor classifies and extracts one file. *docpipe.Pipeline
// implements it.
type Extractor interface {
	Classify(mediaType string) (docpipe.Format, error)
	Extract(ctx context.Context, f docpipe.UploadedFile) (*docpipe.ExtractionResult, error)
}

// EventSink receives ledger events. *runlog.Log implements it.
type EventSink interface {
	Record(ctx context.Context, e runlog.Event) error
}

// Batch is one request: exam papers in submission order plus an optional
// syllabus.
type Batch struct {
	Papers   []docpipe.UploadedFile
	Syllabus *docpipe.UploadedFile
}

// Output holds the two accumulated texts and the per-file results.
type Output struct {
	RunID        string                      `json:"run_id"`
	FinalText    string                      `json:"final_text"`
	SyllabusText string                      `json:"syllabus_text"`
	Papers       []*docpipe.ExtractionResult `json:"papers"`
	Syllabus     *docpipe.ExtractionResult   `json:"syllabus,omitempty"`
}

// Config configures the Orchestrator.
type Config struct {
	// Concurrency is the number of papers extracted at once (default 1).
	// Results keep submission order whatever the value.
	Concurrency int
	// MaxPapers caps the batch size; 0 means no cap.
	MaxPapers int
	NewRunID  idgen.Generator
	Logger    *slog.Logger
}

// Orchestrator runs batches.
type Orchestrator struct {
	ex     Extractor
	sink   EventSink
	cfg    Config
	logger *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEventSink records file and batch events.
func WithEventSink(s EventSink) OrchestratorOption {
	return func(o *Orchestrator) { o.sink = s }
}

// NewOrchestrator creates an Orchestrator over ex.
func NewOrchestrator(ex Extractor, cfg Config, opts ...OrchestratorOption) *Orchestrator {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = idgen.Run
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	o := &Orchestrator{ex: ex, cfg: cfg, logger: cfg.Logger}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Extract runs every paper, then the syllabus, through the extractor and
// joins each accumulator's texts with "\n". The run ID is taken from the
// context (kit.WithRunID) or generated.
func (o *Orchestrator) Extract(ctx context.Context, b Batch) (*Output, error) {
	runID := kit.GetRunID(ctx)
	if runID == "" {
		runID = o.cfg.NewRunID()
		ctx = kit.WithRunID(ctx, runID)
	}
	start := time.Now()

	out, err := o.extract(ctx, runID, b)
	if err != nil {
		o.logger.WarnContext(ctx, "batch failed", "run_id", runID, "papers", len(b.Papers), "error", err)
		o.record(ctx, runlog.Event{
			RunID:      runID,
			Kind:       runlog.BatchFailed,
			Files:      len(b.Papers),
			DurationMs: time.Since(start).Milliseconds(),
			Error:      err.Error(),
		})
		return nil, err
	}

	o.logger.InfoContext(ctx, "batch extracted",
		"run_id", runID,
		"papers", len(out.Papers),
		"syllabus", out.Syllabus != nil,
		"text_len", len(out.FinalText),
		"duration_ms", time.Since(start).Milliseconds())
	o.record(ctx, runlog.Event{
		RunID:      runID,
		Kind:       runlog.BatchExtracted,
		Files:      len(out.Papers),
		TextLen:    len(out.FinalText),
		DurationMs: time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (o *Orchestrator) extract(ctx context.Context, runID string, b Batch) (*Output, error) {
	if len(b.Papers) == 0 {
		return nil, ErrNoPapers
	}
	if o.cfg.MaxPapers > 0 && len(b.Papers) > o.cfg.MaxPapers {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyPapers, len(b.Papers), o.cfg.MaxPapers)
	}
	if err := o.classify(b); err != nil {
		return nil, err
	}

	papers, err := o.extractPapers(ctx, runID, b.Papers)
	if err != nil {
		return nil, err
	}
	out := &Output{RunID: runID, Papers: papers}

	chunks := make([]string, len(papers))
	for i, r := range papers {
		chunks[i] = r.Text
	}
	out.FinalText = strings.Join(chunks, "\n")
	if strings.TrimSpace(out.FinalText) == "" {
		return nil, ErrNoExtractedText
	}

	if b.Syllabus != nil {
		res, err := o.extractOne(ctx, runID, *b.Syllabus)
		if err != nil {
			return nil, fmt.Errorf("syllabus %s: %w", b.Syllabus.Name, err)
		}
		out.Syllabus = res
		out.SyllabusText = res.Text
	}
	return out, nil
}

// classify checks every file of the batch has a strategy before any of
// them is extracted.
func (o *Orchestrator) classify(b Batch) error {
	for i, f := range b.Papers {
		if _, err := o.ex.Classify(f.MediaType); err != nil {
			return fmt.Errorf("paper %d (%s): %w", i+1, f.Name, err)
		}
	}
	if b.Syllabus != nil {
		if _, err := o.ex.Classify(b.Syllabus.MediaType); err != nil {
			return fmt.Errorf("syllabus %s: %w", b.Syllabus.Name, err)
		}
	}
	return nil
}

// extractPapers fills one slot per paper so the order of the output never
// depends on completion order.
func (o *Orchestrator) extractPapers(ctx context.Context, runID string, files []docpipe.UploadedFile) ([]*docpipe.ExtractionResult, error) {
	results := make([]*docpipe.ExtractionResult, len(files))

	if o.cfg.Concurrency == 1 || len(files) == 1 {
		for i, f := range files {
			res, err := o.extractOne(ctx, runID, f)
			if err != nil {
				return nil, fmt.Errorf("paper %d (%s): %w", i+1, f.Name, err)
			}
			results[i] = res
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			res, err := o.extractOne(gctx, runID, f)
			if err != nil {
				return fmt.Errorf("paper %d (%s): %w", i+1, f.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (o *Orchestrator) extractOne(ctx context.Context, runID string, f docpipe.UploadedFile) (*docpipe.ExtractionResult, error) {
	start := time.Now()
	res, err := o.ex.Extract(ctx, f)
	ev := runlog.Event{
		RunID:      runID,
		RequestID:  kit.GetRequestID(ctx),
		File:       f.Name,
		MediaType:  f.MediaType,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		if ctx.Err() == nil || !errors.Is(err, context.Canceled) {
			ev.Kind = runlog.FileFailed
			ev.Error = err.Error()
			o.record(ctx, ev)
		}
		return nil, err
	}
	ev.Kind = runlog.FileExtracted
	ev.Method = string(res.Method)
	ev.Pages = res.Pages
	ev.PageFailures = len(res.PageFailures)
	ev.TextLen = len(res.Text)
	o.record(ctx, ev)
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, e runlog.Event) {
	if o.sink == nil {
		return
	}
	if e.RequestID == "" {
		e.RequestID = kit.GetRequestID(ctx)
	}
	if err := o.sink.Record(context.WithoutCancel(ctx), e); err != nil {
		o.logger.WarnContext(ctx, "run event not recorded", "run_id", e.RunID, "kind", e.Kind, "error", err)
	}
}
