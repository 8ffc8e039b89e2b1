// Package httpapi is the HTTP surface of examprep: multipart uploads in,
// JSON out. Every response body carries a "success" flag.
//
//	POST /v1/files/analyze   papers[], syllabus → structured extraction
//	POST /v1/files/extract   papers[], syllabus → joined texts
//	POST /v1/videos          {"topics":[...]} → per-topic videos
//	GET  /v1/playlists       ?keyword= → playlists
//	GET  /v1/runs            ?run_id=&kind=&since=&limit= → ledger events
//	GET  /healthz
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/examprep/ingest"
	"github.com/hazyhaar/examprep/prompt"
	"github.com/hazyhaar/examprep/runlog"
	"github.com/hazyhaar/examprep/videoindex"
)

// BatchExtractor is implemented by *ingest.Orchestrator.
type BatchExtractor interface {
	Extract(ctx context.Context, b ingest.Batch) (*ingest.Output, error)
}

// BatchAnalyzer is implemented by *ingest.Analyzer.
type BatchAnalyzer interface {
	Analyze(ctx context.Context, b ingest.Batch, enrich bool) (*ingest.Analysis, error)
}

// VideoIndex is implemented by *videoindex.Index.
type VideoIndex interface {
	FetchTopicVideos(ctx context.Context, topics []videoindex.TopicQueries) ([]videoindex.TopicVideos, error)
	SearchPlaylists(ctx context.Context, keyword string) ([]prompt.Media, error)
}

// RunLister is implemented by *runlog.Log.
type RunLister interface {
	Recent(ctx context.Context, f runlog.Filter) ([]runlog.Event, error)
}

// Config bounds uploads and sets analyze defaults.
type Config struct {
	MaxFileBytes int64
	MaxPapers    int
	// EnrichOnAnalyze is the default of the analyze "enrich" query flag.
	EnrichOnAnalyze bool
	Logger          *slog.Logger
}

// Server holds the components behind the routes. A route whose component
// is missing answers 503.
type Server struct {
	cfg     Config
	extract BatchExtractor
	analyze BatchAnalyzer
	videos  VideoIndex
	runs    RunLister
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithExtractor enables POST /v1/files/extract.
func WithExtractor(e BatchExtractor) Option { return func(s *Server) { s.extract = e } }

// WithAnalyzer enables POST /v1/files/analyze.
func WithAnalyzer(a BatchAnalyzer) Option { return func(s *Server) { s.analyze = a } }

// WithVideoIndex enables the video and playlist routes.
func WithVideoIndex(v VideoIndex) Option { return func(s *Server) { s.videos = v } }

// WithRunLister enables GET /v1/runs.
func WithRunLister(r RunLister) Option { return func(s *Server) { s.runs = r } }

// New creates a Server.
func New(cfg Config, opts ...Option) *Server {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 20 << 20
	}
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(s.requestID)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(s.limitUpload).Post("/files/analyze", s.handleAnalyze)
		r.With(s.limitUpload).Post("/files/extract", s.handleExtract)
		r.Post("/videos", s.handleVideos)
		r.Get("/playlists", s.handlePlaylists)
		r.Get("/runs", s.handleRuns)
	})
	return r
}
