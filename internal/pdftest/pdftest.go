// Package pdftest builds small, valid PDF files for tests.
package pdftest

import (
	"fmt"
	"strings"
)

// Text returns a PDF with one page per element of pages; each string in a
// page becomes one line of Helvetica text. A nil or empty page has no text
// operators, which is what a scanned page looks like to a text extractor.
func Text(pages ...[]string) []byte {
	if len(pages) == 0 {
		pages = [][]string{nil}
	}
	streams := make([]string, len(pages))
	for i, lines := range pages {
		streams[i] = contentStream(lines)
	}
	return build(streams, helvetica)
}

// Raw returns a PDF with one page per content stream. The streams may
// select the Helvetica font as /F1.
func Raw(streams ...string) []byte {
	return build(streams, helvetica)
}

// CID returns a one-page PDF whose lines are shown in a composite
// (Type0, Identity-H) font. Character codes are two-byte glyph IDs offset
// from Unicode, as subset TrueType fonts produce; with toUnicode the font
// carries the CMap mapping them back.
func CID(lines []string, toUnicode bool) []byte {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, l := range lines {
		if i > 0 {
			b.WriteString("0 -14 Td\n")
		}
		b.WriteByte('<')
		for _, r := range l {
			fmt.Fprintf(&b, "%04X", int(r)-cidOffset)
		}
		b.WriteString("> Tj\n")
	}
	b.WriteString("ET")

	return build([]string{b.String()}, func(d *doc) int {
		desc := d.add("<< /Type /FontDescriptor /FontName /ArialMT /Flags 32 /FontBBox [-665 -325 2000 1006] " +
			"/ItalicAngle 0 /Ascent 905 /Descent -212 /CapHeight 716 /StemV 80 >>")
		cid := d.add(fmt.Sprintf("<< /Type /Font /Subtype /CIDFontType2 /BaseFont /ArialMT "+
			"/CIDSystemInfo << /Registry (Adobe) /Ordering (Identity) /Supplement 0 >> "+
			"/FontDescriptor %d 0 R /DW 500 /CIDToGIDMap /Identity >>", desc))
		font := fmt.Sprintf("<< /Type /Font /Subtype /Type0 /BaseFont /ArialMT /Encoding /Identity-H /DescendantFonts [%d 0 R]", cid)
		if toUnicode {
			font += fmt.Sprintf(" /ToUnicode %d 0 R", d.add(streamObject(toUnicodeCMap)))
		}
		return d.add(font + " >>")
	})
}

// cidOffset is the distance between a printable ASCII rune and its glyph
// ID in CID fixtures: ' ' is glyph 3.
const cidOffset = 29

var toUnicodeCMap = fmt.Sprintf(`/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfrange
<%04X> <%04X> <0020>
endbfrange
endcmap
CMapName currentdict /CMap defineresource pop
end
end`, 0x20-cidOffset, 0x7E-cidOffset)

func helvetica(d *doc) int {
	return d.add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
}

type doc struct {
	objs []string
}

// add appends an object and returns its object number.
func (d *doc) add(obj string) int {
	d.objs = append(d.objs, obj)
	return len(d.objs)
}

func build(streams []string, font func(*doc) int) []byte {
	d := &doc{}
	d.add("<< /Type /Catalog /Pages 2 0 R >>")
	d.add("") // page tree, filled once the kids are known
	fontRef := font(d)

	kids := make([]string, len(streams))
	for i, s := range streams {
		page := d.add(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R "+
			"/Resources << /Font << /F1 %d 0 R >> >> >>", len(d.objs)+2, fontRef))
		d.add(streamObject(s))
		kids[i] = fmt.Sprintf("%d 0 R", page)
	}
	d.objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(streams))

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(d.objs)+1)
	for i, o := range d.objs {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(d.objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(d.objs); i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(d.objs)+1, xref)
	return []byte(b.String())
}

func streamObject(s string) string {
	return fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(s), s)
}

func contentStream(lines []string) string {
	if len(lines) == 0 {
		return "q\nQ"
	}
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, l := range lines {
		if i > 0 {
			b.WriteString("T*\n")
		}
		fmt.Fprintf(&b, "(%s) Tj\n", Escape(l))
	}
	b.WriteString("ET")
	return b.String()
}

// Escape escapes a string for use inside a PDF literal string.
func Escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	return strings.ReplaceAll(s, ")", `\)`)
}
