package docpipe

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// maxXMLDepth caps element nesting in document XML (XML bomb defence).
const maxXMLDepth = 256

// wordDocument is the parsed body of a word-processor file.
type wordDocument struct {
	title      string
	paragraphs []string
	tables     [][][]string
}

type wordEngine struct{}

func (e *wordEngine) Name() string { return "wordprocessor" }

// Extract returns the paragraphs in document order as one unit, followed by
// one unit per table. The legacy binary format fails the whole file.
func (e *wordEngine) Extract(_ context.Context, path string) (*Extraction, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".doc" || isOLE2(path) {
		return nil, ErrLegacyFormat
	}

	var (
		doc       *wordDocument
		err       error
		processor string
	)
	switch ext {
	case ".odt":
		processor = "odt"
		doc, err = extractODT(path)
	default:
		processor = "docx"
		doc, err = extractDocx(path)
	}
	if err != nil {
		return nil, err
	}

	return &Extraction{
		Processor: processor,
		Units:     doc.units(),
		Extra: map[string]any{
			"title":      doc.title,
			"paragraphs": len(doc.paragraphs),
			"tables":     len(doc.tables),
		},
	}, nil
}

func (d *wordDocument) units() []Unit {
	var units []Unit
	if len(d.paragraphs) > 0 {
		units = append(units, Unit{Text: strings.Join(d.paragraphs, "\n"), Kind: "paragraphs"})
	}
	for _, t := range d.tables {
		if rendered := renderTable(trimGrid(t)); rendered != "" {
			units = append(units, Unit{Text: rendered, Kind: "table"})
		}
	}
	if len(units) == 0 {
		units = append(units, Unit{Text: marker("Empty document"), Kind: "diagnostic"})
	}
	return units
}

// isOLE2 reports whether the file is a Compound File Binary container, which
// is what a .doc renamed to .docx looks like.
func isOLE2(path string) bool {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/x-ole-storage") {
			return true
		}
	}
	return false
}

// openZipMember opens one file from a ZIP archive.
func openZipMember(path, member string) (io.ReadCloser, func() error, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range r.File {
		if f.Name == member {
			rc, err := f.Open()
			if err != nil {
				r.Close()
				return nil, nil, fmt.Errorf("open %s: %w", member, err)
			}
			return rc, r.Close, nil
		}
	}
	r.Close()
	return nil, nil, fmt.Errorf("%s not found in archive", member)
}

// tableBuilder accumulates the rows of the outermost table being parsed.
// Nested tables are flattened into the enclosing cell.
type tableBuilder struct {
	depth int
	rows  [][]string
	row   []string
	cell  strings.Builder
}

func (t *tableBuilder) startTable() {
	t.depth++
	if t.depth == 1 {
		t.rows = nil
	}
}

// endTable returns the finished table when the outermost one closes.
func (t *tableBuilder) endTable() ([][]string, bool) {
	t.depth--
	if t.depth > 0 {
		return nil, false
	}
	rows := t.rows
	t.rows = nil
	return rows, len(rows) > 0
}

func (t *tableBuilder) startRow() {
	if t.depth == 1 {
		t.row = nil
	}
}

func (t *tableBuilder) endRow() {
	if t.depth == 1 {
		t.rows = append(t.rows, t.row)
	}
}

func (t *tableBuilder) startCell() {
	if t.depth == 1 {
		t.cell.Reset()
	}
}

func (t *tableBuilder) endCell() {
	if t.depth == 1 {
		t.row = append(t.row, strings.TrimSpace(t.cell.String()))
	}
}

// addParagraph appends paragraph text to the current cell.
func (t *tableBuilder) addParagraph(text string) {
	if text == "" {
		return
	}
	if t.cell.Len() > 0 {
		t.cell.WriteByte(' ')
	}
	t.cell.WriteString(text)
}

func (t *tableBuilder) inTable() bool { return t.depth > 0 }

// depthGuard tracks element nesting while tokenizing.
type depthGuard struct {
	depth int
}

func (g *depthGuard) enter() error {
	g.depth++
	if g.depth > maxXMLDepth {
		return fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
	}
	return nil
}

func (g *depthGuard) leave() { g.depth-- }

// nextToken reads one token, mapping io.EOF to done.
func nextToken(d *xml.Decoder) (tok xml.Token, done bool, err error) {
	tok, err = d.Token()
	if err == io.EOF {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("parse xml: %w", err)
	}
	return tok, false, nil
}
