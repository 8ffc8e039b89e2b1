// Package docpipe extracts text from uploaded exam documents.
//
// Routing is by declared media type only:
//   - image/*            → OCR on the shared engine
//   - application/pdf    → text layer (pdfcpu); if the normalized text is
//     50 characters or fewer, the PDF is treated as scanned: pages are
//     rasterized and recognized by a per-call OCR engine
//   - Word (.docx) type  → word/document.xml paragraphs
//
// Anything else fails with *UnsupportedFormatError. A declared type that
// does not match the bytes surfaces as *ExtractionError, never as a
// reclassification.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{},
//	    docpipe.WithOCR(sharedEngine),
//	    docpipe.WithScopedOCR(tesseract.Opener(ocrCfg)),
//	    docpipe.WithRasterizer(cloud))
//	res, err := pipe.Extract(ctx, docpipe.UploadedFile{Name: "p1.pdf", MediaType: "application/pdf", Data: data})
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/hazyhaar/examprep/ocrengine"
	"github.com/hazyhaar/examprep/rasterize"
)

// Pipeline is the format router and its strategies.
type Pipeline struct {
	cfg     Config
	logger  *slog.Logger
	ocr     ocrengine.Recognizer
	openOCR ocrengine.Opener
	raster  rasterize.Rasterizer

	// textLayer reads the PDF text layer; replaced in tests.
	textLayer func(data []byte) (*pdfTextLayer, error)
}

// Option wires a collaborator into the Pipeline.
type Option func(*Pipeline)

// WithOCR sets the shared engine used for image files.
func WithOCR(r ocrengine.Recognizer) Option {
	return func(p *Pipeline) { p.ocr = r }
}

// WithScopedOCR sets the opener used for one engine per scanned PDF.
func WithScopedOCR(open ocrengine.Opener) Option {
	return func(p *Pipeline) { p.openOCR = open }
}

// WithRasterizer sets the rasterization collaborator for scanned PDFs.
func WithRasterizer(r rasterize.Rasterizer) Option {
	return func(p *Pipeline) { p.raster = r }
}

// New creates a Pipeline.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		cfg:       cfg,
		logger:    cfg.Logger,
		textLayer: readPDFTextLayer,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Classify maps a declared media type to a strategy.
func (p *Pipeline) Classify(mediaType string) (Format, error) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return "", &UnsupportedFormatError{MediaType: mediaType}
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return FormatImage, nil
	case mt == MediaTypePDF:
		return FormatPDF, nil
	case mt == MediaTypeDocx:
		return FormatDocx, nil
	}
	return "", &UnsupportedFormatError{MediaType: mediaType}
}

// Extract routes f to exactly one strategy and returns its text.
func (p *Pipeline) Extract(ctx context.Context, f UploadedFile) (*ExtractionResult, error) {
	format, err := p.Classify(f.MediaType)
	if err != nil {
		return nil, err
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", f.Name, ErrInvalidFileBuffer)
	}
	if int64(len(f.Data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%s: %w: %d bytes (max %d)", f.Name, ErrFileTooLarge, len(f.Data), p.cfg.MaxFileSize)
	}

	start := time.Now()
	p.logger.DebugContext(ctx, "extracting document",
		"file", f.Name, "media_type", f.MediaType, "format", format, "bytes", len(f.Data))

	var res *ExtractionResult
	switch format {
	case FormatImage:
		res, err = p.extractImage(ctx, f)
	case FormatPDF:
		res, err = p.extractPDF(ctx, f)
	case FormatDocx:
		res, err = p.extractDocx(f)
	}
	if err != nil {
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			err = &ExtractionError{File: f.Name, Method: methodFor(format), Cause: err}
		}
		return nil, err
	}

	res.Name = f.Name
	res.MediaType = f.MediaType
	p.logger.InfoContext(ctx, "document extracted",
		"file", f.Name,
		"method", res.Method,
		"pages", res.Pages,
		"page_failures", len(res.PageFailures),
		"text_len", len(res.Text),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (p *Pipeline) extractImage(ctx context.Context, f UploadedFile) (*ExtractionResult, error) {
	if p.ocr == nil {
		return nil, errors.New("no OCR engine configured")
	}
	text, err := p.ocr.Recognize(ctx, f.Data)
	if err != nil {
		return nil, err
	}
	return &ExtractionResult{Method: MethodOCRImage, Text: text, Pages: 1}, nil
}

func methodFor(f Format) Method {
	switch f {
	case FormatImage:
		return MethodOCRImage
	case FormatDocx:
		return MethodWordDocument
	}
	return MethodDigital
}

// SupportedMediaTypes lists the routed media types.
func SupportedMediaTypes() []string {
	return []string{"image/*", MediaTypePDF, MediaTypeDocx}
}
