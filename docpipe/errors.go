package docpipe

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidFileBuffer is returned for a file with no data.
	ErrInvalidFileBuffer = errors.New("docpipe: invalid file buffer")

	// ErrFileTooLarge is returned when a file exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("docpipe: file too large")

	// ErrMalformedDocument is returned when a PDF or Word file cannot be
	// parsed.
	ErrMalformedDocument = errors.New("docpipe: malformed document")
)

// UnsupportedFormatError is returned for a media type with no strategy.
type UnsupportedFormatError struct {
	MediaType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("docpipe: unsupported file type: %s", e.MediaType)
}

// ExtractionError wraps any failure of a strategy on one file.
type ExtractionError struct {
	File   string
	Method Method
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("docpipe: extract %s (%s): %v", e.File, e.Method, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Page failure stages.
const (
	StageRender = "render"
	StageOCR    = "ocr"
)

// PageRenderError is a failure isolated to one page of a scanned PDF. It
// is recorded in ExtractionResult.PageFailures and never returned.
type PageRenderError struct {
	Page  int
	Stage string
	Cause error
}

func (e *PageRenderError) Error() string {
	return fmt.Sprintf("docpipe: page %d %s: %v", e.Page, e.Stage, e.Cause)
}

func (e *PageRenderError) Unwrap() error { return e.Cause }

func (e *PageRenderError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Cause != nil {
		msg = e.Cause.Error()
	}
	return json.Marshal(struct {
		Page  int    `json:"page"`
		Stage string `json:"stage"`
		Error string `json:"error"`
	}{e.Page, e.Stage, msg})
}
