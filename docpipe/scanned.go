package docpipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/examprep/ocrengine"
	"github.com/hazyhaar/examprep/rasterize"
)

// extractScanned uploads the PDF to the rasterizer, renders and recognizes
// every page with a dedicated OCR session, then deletes the resource.
// A failed page gets a placeholder and a PageRenderError; the document
// still succeeds. The OCR session and the remote resource are released on
// every exit path, including caller cancellation.
func (p *Pipeline) extractScanned(ctx context.Context, f UploadedFile) (*ExtractionResult, error) {
	if p.raster == nil {
		return nil, errors.New("no rasterizer configured")
	}
	if p.openOCR == nil {
		return nil, errors.New("no OCR opener configured")
	}

	res := &ExtractionResult{Method: MethodOCRScanned}
	err := ocrengine.WithSession(ctx, p.openOCR, func(ocr ocrengine.Recognizer) error {
		doc, err := p.raster.Upload(ctx, f.Data)
		if err != nil {
			return fmt.Errorf("rasterizer upload: %w", err)
		}
		defer p.release(ctx, doc)

		pages := doc.Pages
		if pages < 1 {
			pages = 1
		}
		res.Pages = pages

		var sb strings.Builder
		for page := 1; page <= pages; page++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("scanned pdf abandoned at page %d: %w", page, err)
			}
			fmt.Fprintf(&sb, "\n--- Page %d ---\n", page)

			text, perr := p.recognizePage(ctx, ocr, doc, page)
			if perr != nil {
				p.logger.WarnContext(ctx, "page failed",
					"file", f.Name, "page", page, "stage", perr.Stage, "error", perr.Cause)
				res.PageFailures = append(res.PageFailures, perr)
				sb.WriteString(p.cfg.PagePlaceholder)
				continue
			}
			sb.WriteString(text)
		}
		res.Text = sb.String()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) recognizePage(ctx context.Context, ocr ocrengine.Recognizer, doc rasterize.Resource, page int) (string, *PageRenderError) {
	pageCtx, cancel := context.WithTimeout(ctx, p.cfg.PageTimeout)
	img, err := p.raster.RenderPage(pageCtx, doc, page, p.cfg.Render)
	cancel()
	if err != nil {
		return "", &PageRenderError{Page: page, Stage: StageRender, Cause: err}
	}

	text, err := ocr.Recognize(ctx, img)
	if err != nil {
		return "", &PageRenderError{Page: page, Stage: StageOCR, Cause: err}
	}
	return text, nil
}

// release deletes the rasterized resource on a context detached from the
// caller, so an abandoned request still cleans up.
func (p *Pipeline) release(ctx context.Context, doc rasterize.Resource) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CleanupTimeout)
	defer cancel()
	if err := p.raster.Delete(cctx, doc); err != nil {
		p.logger.WarnContext(ctx, "rasterized resource not deleted", "resource", doc.ID, "error", err)
	}
}
