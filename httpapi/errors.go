package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hazyhaar/examprep/collab"
	"github.com/hazyhaar/examprep/docpipe"
	"github.com/hazyhaar/examprep/ingest"
	"github.com/hazyhaar/examprep/ocrengine"
	"github.com/hazyhaar/examprep/prompt"
	"github.com/hazyhaar/examprep/videoindex"
)

// errBadRequest marks request-shape failures detected by the handlers.
var errBadRequest = errors.New("bad request")

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	var unsupported *docpipe.UnsupportedFormatError
	var tooBig *http.MaxBytesError
	var status *collab.StatusError
	var open *collab.ErrCircuitOpen
	switch {
	case errors.As(err, &unsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, errBadRequest),
		errors.As(err, &tooBig),
		errors.Is(err, docpipe.ErrInvalidFileBuffer),
		errors.Is(err, docpipe.ErrFileTooLarge),
		errors.Is(err, ocrengine.ErrInvalidImageBuffer),
		errors.Is(err, ingest.ErrNoPapers),
		errors.Is(err, ingest.ErrTooManyPapers),
		errors.Is(err, videoindex.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrNoExtractedText),
		errors.Is(err, docpipe.ErrMalformedDocument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, prompt.ErrModelOutputInvalid),
		errors.Is(err, ingest.ErrCollaborator),
		errors.As(err, &status),
		errors.As(err, &open):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"success": false, "error": err.Error()})
}
