// Package mupdf is an in-process rasterize.Rasterizer backed by MuPDF
// through go-fitz. Uploaded documents stay open in memory until Delete.
package mupdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"sync"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/hazyhaar/examprep/idgen"
	"github.com/hazyhaar/examprep/rasterize"
)

// Config configures a Rasterizer.
type Config struct {
	Logger *slog.Logger
	NewID  idgen.Generator
}

type openDoc struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// Rasterizer renders pages locally.
type Rasterizer struct {
	mu     sync.Mutex
	docs   map[string]*openDoc
	logger *slog.Logger
	newID  idgen.Generator
}

// New creates an empty Rasterizer.
func New(cfg Config) *Rasterizer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.Document
	}
	return &Rasterizer{
		docs:   make(map[string]*openDoc),
		logger: cfg.Logger,
		newID:  cfg.NewID,
	}
}

// Upload opens the PDF and reports its page count.
func (r *Rasterizer) Upload(ctx context.Context, data []byte) (rasterize.Resource, error) {
	if err := ctx.Err(); err != nil {
		return rasterize.Resource{}, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return rasterize.Resource{}, fmt.Errorf("mupdf: open: %w", err)
	}
	pages := doc.NumPage()
	if pages < 1 {
		pages = 1
	}

	id := r.newID()
	r.mu.Lock()
	r.docs[id] = &openDoc{doc: doc}
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "mupdf document opened", "id", id, "pages", pages)
	return rasterize.Resource{ID: id, Pages: pages}, nil
}

// RenderPage renders page (1-based) at opts.Density and scales it to
// opts.Width, keeping the aspect ratio.
func (r *Rasterizer) RenderPage(ctx context.Context, res rasterize.Resource, page int, opts rasterize.RenderOptions) ([]byte, error) {
	if err := rasterize.CheckPage(res, page); err != nil {
		return nil, err
	}
	opts = opts.WithDefaults()

	r.mu.Lock()
	od, ok := r.docs[res.ID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mupdf: unknown resource %q", res.ID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	od.mu.Lock()
	img, err := od.doc.ImageDPI(page-1, float64(opts.Density))
	od.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("mupdf: render page %d: %w", page, err)
	}

	return encode(scaleToWidth(img, opts.Width), opts.Format)
}

// Delete closes the document.
func (r *Rasterizer) Delete(_ context.Context, res rasterize.Resource) error {
	r.mu.Lock()
	od, ok := r.docs[res.ID]
	delete(r.docs, res.ID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("mupdf: unknown resource %q", res.ID)
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	return od.doc.Close()
}

// Open reports how many documents are held.
func (r *Rasterizer) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}

func scaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() == 0 || b.Dx() == width {
		return src
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	default:
		return nil, fmt.Errorf("mupdf: unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("mupdf: encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}
