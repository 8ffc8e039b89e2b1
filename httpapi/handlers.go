package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/ingest"
	"github.com/hazyhaar/examprep/runlog"
	"github.com/hazyhaar/examprep/videoindex"
)

const (
	fieldPapers   = "papers"
	fieldSyllabus = "syllabus"

	// Parts beyond this are spooled to disk by mime/multipart.
	multipartMemory = 32 << 20
	maxJSONBody     = 1 << 20
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.analyze == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("analysis is not configured"))
		return
	}
	enrich := s.cfg.EnrichOnAnalyze
	if v := r.URL.Query().Get("enrich"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: enrich must be a boolean", errBadRequest))
			return
		}
		enrich = b
	}

	batch, err := s.readBatch(r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	res, err := s.analyze.Analyze(r.Context(), batch, enrich)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.extract == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("extraction is not configured"))
		return
	}
	batch, err := s.readBatch(r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out, err := s.extract.Extract(r.Context(), batch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("video index is not configured"))
		return
	}
	var req struct {
		Topics []videoindex.TopicQueries `json:"topics"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil || req.Topics == nil {
		s.fail(w, r, fmt.Errorf("%w: invalid topics payload", errBadRequest))
		return
	}

	data, err := s.videos.FetchTopicVideos(r.Context(), req.Topics)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) handlePlaylists(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("video index is not configured"))
		return
	}
	playlists, err := s.videos.SearchPlaylists(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(playlists), "playlists": playlists})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("run log is disabled"))
		return
	}
	q := r.URL.Query()
	f := runlog.Filter{RunID: q.Get("run_id"), Kind: runlog.Kind(q.Get("kind"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: since must be RFC 3339", errBadRequest))
			return
		}
		f.Since = t
	}

	events, err := s.runs.Recent(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(events), "events": events})
}

// fail logs err at a level matching its status and writes the error body.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", code, "error", err)
	} else {
		s.logger.WarnContext(r.Context(), "request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	writeError(w, code, err)
}

// readBatch parses the multipart fields papers (1..MaxPapers files) and
// syllabus (at most one file). Limits are checked before any file is read.
func (s *Server) readBatch(r *http.Request) (ingest.Batch, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ingest.Batch{}, err
		}
		return ingest.Batch{}, fmt.Errorf("%w: multipart form: %v", errBadRequest, err)
	}
	papers := r.MultipartForm.File[fieldPapers]
	syllabus := r.MultipartForm.File[fieldSyllabus]
	switch {
	case len(papers) == 0:
		return ingest.Batch{}, ingest.ErrNoPapers
	case len(papers) > s.cfg.MaxPapers:
		return ingest.Batch{}, fmt.Errorf("%w: %d files (max %d)", ingest.ErrTooManyPapers, len(papers), s.cfg.MaxPapers)
	case len(syllabus) > 1:
		return ingest.Batch{}, fmt.Errorf("%w: at most one syllabus file", errBadRequest)
	}
	for _, fh := range append(papers[:len(papers):len(papers)], syllabus...) {
		if fh.Size > s.cfg.MaxFileBytes {
			return ingest.Batch{}, fmt.Errorf("%w: %s is %d bytes (max %d)", docpipe.ErrFileTooLarge, fh.Filename, fh.Size, s.cfg.MaxFileBytes)
		}
	}

	var b ingest.Batch
	for _, fh := range papers {
		f, err := readPart(fh)
		if err != nil {
			return ingest.Batch{}, err
		}
		b.Papers = append(b.Papers, f)
	}
	if len(syllabus) == 1 {
		f, err := readPart(syllabus[0])
		if err != nil {
			return ingest.Batch{}, err
		}
		b.Syllabus = &f
	}
	return b, nil
}

func readPart(fh *multipart.FileHeader) (docpipe.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return docpipe.UploadedFile{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return docpipe.UploadedFile{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return docpipe.UploadedFile{Name: fh.Filename, MediaType: mediaTypeOf(fh), Data: data}, nil
}

// mediaTypeOf returns the part's declared media type. A missing or generic
// declaration falls back to the file extension.
func mediaTypeOf(fh *multipart.FileHeader) string {
	declared := fh.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	switch ext {
	case ".pdf":
		return docpipe.MediaTypePDF
	case ".docx":
		return docpipe.MediaTypeDocx
	}
	if mt, _, err := mime.ParseMediaType(mime.TypeByExtension(ext)); err == nil {
		return mt
	}
	if declared == "" {
		return "application/octet-stream"
	}
	return declared
}
