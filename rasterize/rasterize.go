// Package rasterize turns PDF pages into images for OCR.
//
// A Rasterizer owns a document for the lifetime of a Resource: Upload
// returns the resource and its page count, RenderPage renders one page,
// Delete releases it. Callers must Delete every uploaded resource.
//
// Two implementations exist: Cloudinary (remote, this package) and
// rasterize/mupdf (in-process).
package rasterize

import (
	"context"
	"fmt"
)

// Resource is a document held by a rasterizer.
type Resource struct {
	ID    string `json:"id"`
	Pages int    `json:"pages"`
}

// RenderOptions controls page rendering.
type RenderOptions struct {
	// Density in dots per inch (default: 300).
	Density int `json:"density" yaml:"density"`
	// Width of the rendered image in pixels (default: 1200).
	Width int `json:"width" yaml:"width"`
	// Format of the rendered image (default: png).
	Format string `json:"format" yaml:"format"`
}

// DefaultRenderOptions balances OCR accuracy against image size.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{Density: 300, Width: 1200, Format: "png"}
}

// WithDefaults fills zero fields from DefaultRenderOptions.
func (o RenderOptions) WithDefaults() RenderOptions {
	d := DefaultRenderOptions()
	if o.Density <= 0 {
		o.Density = d.Density
	}
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	return o
}

// Rasterizer is the rasterization collaborator.
type Rasterizer interface {
	Upload(ctx context.Context, doc []byte) (Resource, error)
	RenderPage(ctx context.Context, res Resource, page int, opts RenderOptions) ([]byte, error)
	Delete(ctx context.Context, res Resource) error
}

// CheckPage validates a 1-based page index against res.
func CheckPage(res Resource, page int) error {
	if page < 1 || (res.Pages > 0 && page > res.Pages) {
		return fmt.Errorf("rasterize: page %d out of range [1,%d]", page, res.Pages)
	}
	return nil
}
