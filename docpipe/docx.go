package docpipe

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	maxDocxXMLBytes = 64 << 20
	maxXMLDepth     = 256
)

func (p *Pipeline) extractDocx(f UploadedFile) (*ExtractionResult, error) {
	text, err := docxText(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &ExtractionResult{Method: MethodWordDocument, Text: text}, nil
}

// docxText returns the raw text of word/document.xml, one line per
// non-empty paragraph. Tabs and breaks inside a run become a space and a
// newline respectively.
func docxText(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(io.LimitReader(rc, maxDocxXMLBytes))
	var paragraphs []string
	var current strings.Builder
	depth, pDepth := 0, 0
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return "", fmt.Errorf("document.xml exceeds nesting depth %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "p":
				pDepth++
			case "t":
				inText = true
			case "tab":
				current.WriteByte(' ')
			case "br", "cr":
				current.WriteByte('\n')
			}

		case xml.CharData:
			if inText && pDepth > 0 {
				current.Write(t)
			}

		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if pDepth > 0 {
					pDepth--
				}
				if pDepth == 0 {
					if text := strings.TrimSpace(current.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
					current.Reset()
				}
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
