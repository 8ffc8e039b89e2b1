package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/examprep/collab"
	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/ingest"
	"github.com/hazyhaar/examprep/prompt"
	"github.com/hazyhaar/examprep/runlog"
	"github.com/hazyhaar/examprep/videoindex"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	batch  ingest.Batch
	enrich bool
	err    error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, b ingest.Batch, enrich bool) (*ingest.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batch = b
	f.enrich = enrich
	if f.err != nil {
		return nil, f.err
	}
	return &ingest.Analysis{
		RunID:      "run_1",
		Extraction: &prompt.StructuredExtraction{Subject: "Physics"},
		Enriched:   enrich,
	}, nil
}

type fakeExtractor struct {
	batch ingest.Batch
}

func (f *fakeExtractor) Extract(_ context.Context, b ingest.Batch) (*ingest.Output, error) {
	f.batch = b
	var texts []string
	for _, p := range b.Papers {
		texts = append(texts, string(p.Data))
	}
	return &ingest.Output{RunID: "run_2", FinalText: strings.Join(texts, "\n")}, nil
}

type fakeSearcher struct{}

func (fakeSearcher) Search(_ context.Context, query string, kind videoindex.Kind, max int64) ([]prompt.Media, error) {
	if query == "quota" {
		return nil, &collab.StatusError{Method: "GET", URL: "https://www.googleapis.com/youtube/v3/search", Code: 403}
	}
	out := make([]prompt.Media, 0, max)
	for i := int64(0); i < max && i < 2; i++ {
		out = append(out, prompt.Media{Kind: string(kind), ID: fmt.Sprintf("%s-%d", query, i), Title: query})
	}
	return out, nil
}

type part struct {
	field, name, mediaType, body string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.name))
		if p.mediaType != "" {
			h.Set("Content-Type", p.mediaType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, p.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, h http.Handler, path string, parts ...part) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	return do(t, h, req)
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	return rec, out
}

func newServer(cfg Config, opts ...Option) http.Handler {
	cfg.Logger = quiet
	return New(cfg, opts...).Handler()
}

func TestHealthz_RequestID(t *testing.T) {
	h := newServer(Config{})

	rec, out := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("%d %v", rec.Code, out)
	}
	if id := rec.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req_") {
		t.Fatalf("generated request id: %q", id)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-42")
	rec, _ = do(t, h, req)
	if rec.Header().Get("X-Request-ID") != "caller-42" {
		t.Fatalf("caller request id not echoed: %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestAnalyze(t *testing.T) {
	// WHAT: Papers keep submission order, the syllabus is separate, and the
	// enrich flag defaults from config and can be overridden.
	// WHY: Topic ranking depends on the papers' order in the joined text.
	fa := &fakeAnalyzer{}
	h := newServer(Config{EnrichOnAnalyze: true}, WithAnalyzer(fa))

	rec, out := upload(t, h, "/v1/files/analyze",
		part{"papers", "2023.pdf", "application/pdf", "first"},
		part{"papers", "2024.png", "image/png", "second"},
		part{"syllabus", "syllabus.docx", "", "syl"},
	)
	if rec.Code != http.StatusOK || out["success"] != true {
		t.Fatalf("%d %v", rec.Code, out)
	}
	if len(fa.batch.Papers) != 2 || fa.batch.Papers[0].Name != "2023.pdf" || string(fa.batch.Papers[1].Data) != "second" {
		t.Fatalf("papers: %+v", fa.batch.Papers)
	}
	if fa.batch.Syllabus == nil || fa.batch.Syllabus.MediaType != docpipe.MediaTypeDocx {
		t.Fatalf("syllabus: %+v", fa.batch.Syllabus)
	}
	if !fa.enrich {
		t.Fatal("enrich default not applied")
	}
	data := out["data"].(map[string]any)
	if data["run_id"] != "run_1" {
		t.Fatalf("data: %v", data)
	}

	rec, _ = upload(t, h, "/v1/files/analyze?enrich=false", part{"papers", "a.pdf", "application/pdf", "x"})
	if rec.Code != http.StatusOK || fa.enrich {
		t.Fatalf("enrich override: %d %v", rec.Code, fa.enrich)
	}

	rec, _ = upload(t, h, "/v1/files/analyze?enrich=maybe", part{"papers", "a.pdf", "application/pdf", "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad enrich flag: %d", rec.Code)
	}
}

func TestAnalyze_UploadLimits(t *testing.T) {
	fa := &fakeAnalyzer{}
	h := newServer(Config{MaxFileBytes: 10, MaxPapers: 2}, WithAnalyzer(fa))

	cases := []struct {
		name  string
		parts []part
	}{
		{"no papers", []part{{"syllabus", "s.pdf", "application/pdf", "s"}}},
		{"too many papers", []part{
			{"papers", "1.pdf", "application/pdf", "a"},
			{"papers", "2.pdf", "application/pdf", "b"},
			{"papers", "3.pdf", "application/pdf", "c"},
		}},
		{"two syllabi", []part{
			{"papers", "1.pdf", "application/pdf", "a"},
			{"syllabus", "s1.pdf", "application/pdf", "s"},
			{"syllabus", "s2.pdf", "application/pdf", "s"},
		}},
		{"file too large", []part{{"papers", "big.pdf", "application/pdf", strings.Repeat("x", 11)}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec, out := upload(t, h, "/v1/files/analyze", c.parts...)
			if rec.Code != http.StatusBadRequest || out["success"] != false || out["error"] == "" {
				t.Fatalf("%d %v", rec.Code, out)
			}
		})
	}
	if fa.calls != 0 {
		t.Fatalf("analyzer called %d times for rejected uploads", fa.calls)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/files/analyze", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	if rec, _ := do(t, h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-multipart body: %d", rec.Code)
	}
}

func TestAnalyze_ErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&docpipe.ExtractionError{File: "a.xyz", Cause: &docpipe.UnsupportedFormatError{MediaType: "text/csv"}}, http.StatusUnsupportedMediaType},
		{&docpipe.ExtractionError{File: "a.png", Cause: docpipe.ErrInvalidFileBuffer}, http.StatusBadRequest},
		{ingest.ErrNoExtractedText, http.StatusUnprocessableEntity},
		{&docpipe.ExtractionError{File: "a.pdf", Cause: fmt.Errorf("%w: pdfcpu read: no header", docpipe.ErrMalformedDocument)}, http.StatusUnprocessableEntity},
		{&docpipe.ExtractionError{File: "b.pdf", Cause: &collab.StatusError{Method: "POST", URL: "https://api.cloudinary.com/v1_1/demo/image/upload", Code: 500}}, http.StatusBadGateway},
		{fmt.Errorf("parse: %w", prompt.ErrModelOutputInvalid), http.StatusBadGateway},
		{fmt.Errorf("%w: %w", ingest.ErrCollaborator, &collab.StatusError{Method: "POST", URL: "https://api.groq.com/openai/v1/chat/completions", Code: 429}), http.StatusBadGateway},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		fa := &fakeAnalyzer{err: c.err}
		h := newServer(Config{}, WithAnalyzer(fa))
		rec, out := upload(t, h, "/v1/files/analyze", part{"papers", "a.pdf", "application/pdf", "x"})
		if rec.Code != c.want {
			t.Errorf("%v: got %d, want %d", c.err, rec.Code, c.want)
		}
		if out["success"] != false || out["error"] != c.err.Error() {
			t.Errorf("%v: body %v", c.err, out)
		}
	}
}

func TestExtract(t *testing.T) {
	fe := &fakeExtractor{}
	h := newServer(Config{}, WithExtractor(fe))

	rec, out := upload(t, h, "/v1/files/extract",
		part{"papers", "q1.pdf", "application/octet-stream", "Q1"},
		part{"papers", "q2.pdf", "", "Q2"},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("%d %v", rec.Code, out)
	}
	data := out["data"].(map[string]any)
	if data["final_text"] != "Q1\nQ2" {
		t.Fatalf("final_text: %v", data["final_text"])
	}
	for _, p := range fe.batch.Papers {
		if p.MediaType != docpipe.MediaTypePDF {
			t.Fatalf("%s: media type %q not inferred from extension", p.Name, p.MediaType)
		}
	}
}

func TestVideosAndPlaylists(t *testing.T) {
	ix := videoindex.New(fakeSearcher{}, videoindex.WithLogger(quiet))
	h := newServer(Config{}, WithVideoIndex(ix))

	req := httptest.NewRequest(http.MethodPost, "/v1/videos",
		strings.NewReader(`{"topics":[{"main_topic":"Ohm's law","youtube_queries":["ohm law","ohm law numericals","extra"]}]}`))
	rec, out := do(t, h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("%d %v", rec.Code, out)
	}
	topics := out["data"].([]any)
	videos := topics[0].(map[string]any)["videos"].([]any)
	if len(videos) != 2 {
		t.Fatalf("videos: %v", videos)
	}

	for _, body := range []string{`{}`, `{"topics":"x"}`, `not json`} {
		rec, _ := do(t, h, httptest.NewRequest(http.MethodPost, "/v1/videos", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: %d", body, rec.Code)
		}
	}

	rec, out = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/playlists?keyword=thermodynamics", nil))
	if rec.Code != http.StatusOK || out["count"] != float64(2) {
		t.Fatalf("%d %v", rec.Code, out)
	}
	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/playlists", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing keyword: %d", rec.Code)
	}
	rec, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/playlists?keyword=quota", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("search failure: %d", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	log, err := runlog.Open(":memory:", runlog.WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	ctx := context.Background()
	for _, e := range []runlog.Event{
		{RunID: "run_a", Kind: runlog.FileExtracted, File: "a.pdf"},
		{RunID: "run_a", Kind: runlog.BatchExtracted, Files: 1},
		{RunID: "run_b", Kind: runlog.BatchFailed, Error: "boom"},
	} {
		if err := log.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	h := newServer(Config{}, WithRunLister(log))

	rec, out := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/runs?run_id=run_a", nil))
	if rec.Code != http.StatusOK || out["count"] != float64(2) {
		t.Fatalf("%d %v", rec.Code, out)
	}
	rec, out = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/runs?kind=batch_failed&limit=5", nil))
	if rec.Code != http.StatusOK || out["count"] != float64(1) {
		t.Fatalf("%d %v", rec.Code, out)
	}
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec, out = do(t, h, httptest.NewRequest(http.MethodGet, "/v1/runs?since="+future, nil))
	if rec.Code != http.StatusOK || out["count"] != float64(0) {
		t.Fatalf("%d %v", rec.Code, out)
	}
	for _, q := range []string{"limit=-1", "limit=x", "since=yesterday"} {
		if rec, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/v1/runs?"+q, nil)); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: %d", q, rec.Code)
		}
	}
}

func TestUnconfiguredRoutes(t *testing.T) {
	h := newServer(Config{})
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/v1/videos", strings.NewReader(`{"topics":[]}`)),
		httptest.NewRequest(http.MethodGet, "/v1/playlists?keyword=x", nil),
		httptest.NewRequest(http.MethodGet, "/v1/runs", nil),
	} {
		if rec, _ := do(t, h, req); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: %d", req.Method, req.URL.Path, rec.Code)
		}
	}
	rec, _ := upload(t, h, "/v1/files/analyze", part{"papers", "a.pdf", "application/pdf", "x"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("analyze: %d", rec.Code)
	}
}
