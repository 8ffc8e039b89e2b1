package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// pdfTextLayer is the embedded text of a PDF, one entry per page.
type pdfTextLayer struct {
	Pages   []string
	Quality *ExtractionQuality
}

// Text joins the non-empty pages with newlines.
func (l *pdfTextLayer) Text() string {
	var sb strings.Builder
	for _, p := range l.Pages {
		if p == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func (p *Pipeline) extractPDF(ctx context.Context, f UploadedFile) (*ExtractionResult, error) {
	layer, err := p.textLayer(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	text := layer.Text()
	score := Meaningfulness(text)

	if score > p.cfg.MeaningfulThreshold {
		return &ExtractionResult{
			Method:  MethodDigital,
			Text:    text,
			Pages:   len(layer.Pages),
			Quality: layer.Quality,
		}, nil
	}

	p.logger.InfoContext(ctx, "pdf text layer below threshold, treating as scanned",
		"file", f.Name,
		"meaningful_chars", score,
		"threshold", p.cfg.MeaningfulThreshold,
		"has_image_streams", layer.Quality != nil && layer.Quality.HasImageStreams)

	res, err := p.extractScanned(ctx, f)
	if err != nil {
		return nil, &ExtractionError{File: f.Name, Method: MethodOCRScanned, Cause: err}
	}
	res.Quality = layer.Quality
	return res, nil
}

// readPDFTextLayer validates the PDF with pdfcpu, then decodes each page's
// text through its fonts' encodings and ToUnicode maps.
func readPDFTextLayer(data []byte) (*pdfTextLayer, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	layer := &pdfTextLayer{Pages: make([]string, 0, r.NumPage())}
	for pageNr := 1; pageNr <= r.NumPage(); pageNr++ {
		layer.Pages = append(layer.Pages, pageText(r.Page(pageNr)))
	}
	layer.Quality = measureQuality(layer, detectImageStreams(ctx))
	return layer, nil
}

// pageText interprets the page content stream. Strings shown in a font
// that cannot be mapped to Unicode are dropped, so such pages score as
// scanned. A page whose content stream cannot be interpreted yields "".
func pageText(p pdf.Page) (text string) {
	if p.V.IsNull() || p.V.Key("Contents").Kind() == pdf.Null {
		return ""
	}
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	decoders := make(map[string]pdf.TextEncoding)
	for _, name := range p.Fonts() {
		if enc := fontDecoder(p.Font(name)); enc != nil {
			decoders[name] = enc
		}
	}

	var (
		tc  textCollector
		enc pdf.TextEncoding
	)
	show := func(v pdf.Value) {
		if enc == nil || v.Kind() != pdf.String {
			return
		}
		tc.show(enc.Decode(v.RawString()))
	}

	pdf.Interpret(p.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "BT":
			tc.beginText()
		case "Tf":
			if len(args) == 2 {
				enc = decoders[args[0].Name()]
			}
		case "Tj":
			if len(args) == 1 {
				show(args[0])
			}
		case "'":
			tc.nextLine()
			if len(args) == 1 {
				show(args[0])
			}
		case `"`:
			tc.nextLine()
			if len(args) == 3 {
				show(args[2])
			}
		case "TJ":
			if len(args) != 1 {
				return
			}
			arr := args[0]
			for i := 0; i < arr.Len(); i++ {
				switch x := arr.Index(i); x.Kind() {
				case pdf.String:
					show(x)
				case pdf.Integer, pdf.Real:
					tc.kern(x.Float64())
				}
			}
		case "T*":
			tc.nextLine()
		case "Td", "TD":
			if len(args) == 2 {
				tc.move(args[0].Float64(), args[1].Float64())
			}
		case "Tm":
			if len(args) == 6 {
				tc.setBaseline(args[5].Float64())
			}
		}
	})

	return cleanPDFText(tc.String())
}

// fontDecoder returns the decoder for a page font, or nil when its codes
// cannot be mapped to text. Composite (Type0) fonts carry glyph IDs that
// mean nothing without an Identity-H encoding and a ToUnicode CMap.
func fontDecoder(f pdf.Font) pdf.TextEncoding {
	if f.V.Key("Subtype").Name() == "Type0" {
		if f.V.Key("Encoding").Name() != "Identity-H" || f.V.Key("ToUnicode").Kind() != pdf.Stream {
			return nil
		}
	}
	return f.Encoder()
}

// detectImageStreams reports whether the PDF holds image XObjects.
func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

// textCollector lays decoded strings out as lines. A change of vertical
// text position, T*, ' and " start a new line; a horizontal move or a
// large negative TJ adjustment becomes a space.
type textCollector struct {
	sb           strings.Builder
	curY, lineY  float64
	emitted      bool
	forceBreak   bool
	pendingSpace bool
}

func (c *textCollector) beginText() {
	c.curY = 0
	c.pendingSpace = true
}

func (c *textCollector) show(s string) {
	if s == "" {
		return
	}
	if c.emitted && (c.forceBreak || c.curY != c.lineY) {
		c.sb.WriteByte('\n')
	} else if c.pendingSpace && c.emitted {
		c.sb.WriteByte(' ')
	}
	c.sb.WriteString(s)
	c.emitted = true
	c.lineY = c.curY
	c.forceBreak = false
	c.pendingSpace = false
}

func (c *textCollector) kern(n float64) {
	if n < -200 {
		c.pendingSpace = true
	}
}

func (c *textCollector) nextLine() { c.forceBreak = true }

func (c *textCollector) move(tx, ty float64) {
	c.curY += ty
	if tx != 0 {
		c.pendingSpace = true
	}
}

func (c *textCollector) setBaseline(y float64) {
	c.curY = y
	c.pendingSpace = true
}

func (c *textCollector) String() string { return c.sb.String() }

// cleanPDFText collapses whitespace inside lines, drops unprintable and
// replacement runes and empty lines.
func cleanPDFText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			case isGarbageRune(r):
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if l := strings.TrimSpace(sb.String()); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
