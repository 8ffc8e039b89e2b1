package docpipe

// Format identifies an extraction strategy.
type Format string

const (
	FormatImage Format = "image"
	FormatPDF   Format = "pdf"
	FormatDocx  Format = "docx"
)

// Media types routed by the pipeline. Any image/* type routes to FormatImage.
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Method records how text was obtained.
type Method string

const (
	MethodDigital      Method = "digital"
	MethodOCRImage     Method = "ocr-image"
	MethodOCRScanned   Method = "ocr-scanned-pdf"
	MethodWordDocument Method = "word-document"
)

// UploadedFile is one caller-owned input. The pipeline only reads Data and
// does not keep it after Extract returns.
type UploadedFile struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// ExtractionResult is the outcome of extracting one file. Text is never
// absent; for scanned PDFs it carries one "--- Page N ---" section per page,
// with a placeholder for pages listed in PageFailures.
type ExtractionResult struct {
	Name         string             `json:"name"`
	MediaType    string             `json:"media_type"`
	Method       Method             `json:"method"`
	Text         string             `json:"text"`
	Pages        int                `json:"pages,omitempty"`
	PageFailures []*PageRenderError `json:"page_failures,omitempty"`
	Quality      *ExtractionQuality `json:"quality,omitempty"`
}
