package docpipe

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractionQuality describes a PDF text layer. It is informational: the
// digital/scanned decision uses MeaningfulChars alone.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	MeaningfulChars int     `json:"meaningful_chars"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
}

var (
	paginationMarkerRe = regexp.MustCompile(`(?i)--\s*\d+\s*of\s*\d+\s*--`)
	whitespaceRunRe    = regexp.MustCompile(`\s+`)
)

// Meaningfulness is the length in runes of text once pagination markers
// ("-- 1 of 3 --") are removed and whitespace runs collapsed to one space.
func Meaningfulness(text string) int {
	text = paginationMarkerRe.ReplaceAllString(text, "")
	text = whitespaceRunRe.ReplaceAllString(text, " ")
	return utf8.RuneCountInString(strings.TrimSpace(text))
}

func measureQuality(layer *pdfTextLayer, hasImages bool) *ExtractionQuality {
	text := layer.Text()
	q := &ExtractionQuality{
		PageCount:       len(layer.Pages),
		MeaningfulChars: Meaningfulness(text),
		PrintableRatio:  computePrintableRatio(text),
		WordlikeRatio:   computeWordlikeRatio(text),
		HasImageStreams: hasImages,
	}
	if q.PageCount > 0 {
		q.CharsPerPage = float64(utf8.RuneCountInString(text)) / float64(q.PageCount)
	}
	return q
}

// computePrintableRatio is the share of printable runes. Private-use,
// replacement and control runes (other than \n \r \t) count as garbage.
func computePrintableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r == utf8.RuneError:
		return true
	case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}

// computeWordlikeRatio is the share of whitespace-separated tokens with 2
// to 15 runes.
func computeWordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		if n := utf8.RuneCountInString(f); n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}
