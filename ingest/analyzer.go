package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/examprep/prompt"
)

// ErrCollaborator marks a failed call to the model backend.
var ErrCollaborator = errors.New("ingest: collaborator call failed")

// Completer sends a prompt to the structured-extraction model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Enricher attaches videos and playlists to an extraction.
type Enricher interface {
	Enrich(ctx context.Context, ext *prompt.StructuredExtraction) error
}

// Analysis is the outcome of Analyze.
type Analysis struct {
	RunID      string                       `json:"run_id"`
	Extraction *prompt.StructuredExtraction `json:"extraction"`
	Enriched   bool                         `json:"enriched"`
	// EnrichError is set when enrichment was requested and failed.
	EnrichError string `json:"enrich_error,omitempty"`
}

// Analyzer chains extraction, prompt building, the model call, parsing and
// optional enrichment.
type Analyzer struct {
	orch     *Orchestrator
	builder  *prompt.Builder
	model    Completer
	enricher Enricher
	logger   *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithEnricher enables enrichment.
func WithEnricher(e Enricher) AnalyzerOption {
	return func(a *Analyzer) { a.enricher = e }
}

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(orch *Orchestrator, builder *prompt.Builder, model Completer, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{orch: orch, builder: builder, model: model, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze extracts b, builds the request and asks the model. Nothing is
// sent to the model when the papers yield no usable text. With enrich
// set, a failed enrichment is logged and reported in EnrichError, never
// returned.
func (a *Analyzer) Analyze(ctx context.Context, b Batch, enrich bool) (*Analysis, error) {
	out, err := a.orch.Extract(ctx, b)
	if err != nil {
		return nil, err
	}

	req, err := a.builder.Build(out.FinalText, out.SyllabusText)
	if errors.Is(err, prompt.ErrEmptyExamText) {
		return nil, fmt.Errorf("%w: nothing left after cleaning", ErrNoExtractedText)
	}
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := a.model.Complete(ctx, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollaborator, err)
	}
	ext, err := prompt.Parse(raw)
	if err != nil {
		a.logger.WarnContext(ctx, "model output rejected", "run_id", out.RunID, "answer_len", len(raw), "error", err)
		return nil, err
	}
	a.logger.InfoContext(ctx, "extraction parsed",
		"run_id", out.RunID,
		"subject", ext.Subject,
		"topics", len(ext.Topics),
		"prompt_len", len(req.Prompt),
		"duration_ms", time.Since(start).Milliseconds())

	res := &Analysis{RunID: out.RunID, Extraction: ext}
	if enrich && a.enricher != nil {
		if err := a.enricher.Enrich(ctx, ext); err != nil {
			a.logger.WarnContext(ctx, "enrichment failed", "run_id", out.RunID, "error", err)
			res.EnrichError = err.Error()
		} else {
			res.Enriched = true
		}
	}
	return res, nil
}
