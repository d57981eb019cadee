package docpipe

// Category is the coarse document type that drives engine selection.
type Category string

const (
	CategorySpreadsheet   Category = "spreadsheet"
	CategoryWordProcessor Category = "wordprocessor"
	CategoryPDF           Category = "pdf"
	CategoryImage         Category = "image"
	CategoryPlainText     Category = "plaintext"
)

// Unit is a structural subdivision of a document (sheet, page, paragraph
// block, table). Units are rendered in order by the canonicalizer.
type Unit struct {
	Title string `json:"title,omitempty"` // rendered as a "## " heading
	Text  string `json:"text"`
	Kind  string `json:"kind"` // sheet, page, paragraphs, table, ocr, text, converted, diagnostic
}

// Extraction is the raw output of one engine invocation.
type Extraction struct {
	Processor string
	Units     []Unit
	Extra     map[string]any // category-specific metadata (sheet names, page count...)
}

// Result is the canonical text representation of one file.
// It is never modified after Process returns it.
type Result struct {
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata"`
	FileCategory Category       `json:"file_category"`
}

// Processor returns the processor identifier recorded in the metadata.
func (r *Result) Processor() string {
	s, _ := r.Metadata["processor"].(string)
	return s
}
