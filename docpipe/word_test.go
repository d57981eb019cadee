package docpipe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const docxNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func buildDocx(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "test.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document ` + docxNS + `><w:body>` + body + `</w:body></w:document>`,
	})
	return path
}

const odtNS = `xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" ` +
	`xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" ` +
	`xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"`

func buildODT(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "test.odt")
	writeZip(t, path, map[string]string{
		"content.xml": `<?xml version="1.0" encoding="UTF-8"?><office:document-content ` + odtNS +
			`><office:body><office:text>` + body + `</office:text></office:body></office:document-content>`,
	})
	return path
}

func TestProcess_Docx(t *testing.T) {
	body := `
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Test Title</w:t></w:r></w:p>
<w:p><w:r><w:t>This is </w:t></w:r><w:r><w:t>body text.</w:t></w:r></w:p>
<w:p></w:p>
<w:tbl>
  <w:tr><w:tc><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Qty</w:t></w:r></w:p></w:tc></w:tr>
  <w:tr><w:tc><w:p><w:r><w:t>Apples</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>3</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>After table.</w:t></w:r></w:p>`
	path := buildDocx(t, t.TempDir(), body)

	res, err := newTestPipeline().Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	want := "Test Title\nThis is body text.\nAfter table.\n\n" +
		"| Name | Qty |\n| --- | --- |\n| Apples | 3 |"
	if res.Content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", res.Content, want)
	}
	if res.Processor() != "docx" {
		t.Fatalf("processor = %q", res.Processor())
	}
	if res.Metadata["title"] != "Test Title" || res.Metadata["tables"] != 1 || res.Metadata["paragraphs"] != 3 {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestProcess_DocxEmpty(t *testing.T) {
	path := buildDocx(t, t.TempDir(), `<w:p></w:p>`)
	res, err := newTestPipeline().Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Content != "*(Empty document)*" {
		t.Fatalf("content = %q", res.Content)
	}
}

func TestProcess_DocxTextBox(t *testing.T) {
	box := `<w:txbxContent><w:p><w:r><w:t>Box text</w:t></w:r></w:p></w:txbxContent>`
	body := `
<w:p>
  <w:r><w:t xml:space="preserve">Outer start, </w:t></w:r>
  <w:r><mc:AlternateContent xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006">
    <mc:Choice Requires="wps"><w:drawing><wps:txbx xmlns:wps="http://schemas.microsoft.com/office/word/2010/wordprocessingShape">` + box + `</wps:txbx></w:drawing></mc:Choice>
    <mc:Fallback><w:pict><v:textbox xmlns:v="urn:schemas-microsoft-com:vml">` + box + `</v:textbox></w:pict></mc:Fallback>
  </mc:AlternateContent></w:r>
  <w:r><w:t>outer end.</w:t></w:r>
</w:p>
<w:p><w:r><w:t>Next paragraph.</w:t></w:r></w:p>`
	path := buildDocx(t, t.TempDir(), body)

	res, err := newTestPipeline().Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "Box text\nOuter start, outer end.\nNext paragraph."
	if res.Content != want {
		t.Fatalf("content = %q, want %q", res.Content, want)
	}
	if res.Metadata["paragraphs"] != 3 {
		t.Fatalf("paragraphs = %v", res.Metadata["paragraphs"])
	}
}

func TestProcess_DocxMissingPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.docx")
	writeZip(t, path, map[string]string{"other.xml": "<x/>"})
	_, err := newTestPipeline().Process(context.Background(), path)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestProcess_ODT(t *testing.T) {
	body := `
<text:h text:outline-level="1">ODT Title</text:h>
<text:p>First<text:s text:c="2"/>paragraph.</text:p>
<table:table>
  <table:table-row><table:table-cell><text:p>k</text:p></table:table-cell><table:table-cell><text:p>v</text:p></table:table-cell></table:table-row>
</table:table>
<text:p>Second<text:tab/>paragraph.</text:p>`
	path := buildODT(t, t.TempDir(), body)

	res, err := newTestPipeline().Process(context.Background(), path)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "ODT Title\nFirst  paragraph.\nSecond\tparagraph.\n\n| k | v |\n| --- | --- |"
	if res.Content != want {
		t.Fatalf("content:\n%q\nwant:\n%q", res.Content, want)
	}
	if res.Processor() != "odt" || res.Metadata["title"] != "ODT Title" {
		t.Fatalf("metadata = %v", res.Metadata)
	}
}

func TestWordEngine_OLE2Renamed(t *testing.T) {
	// A .doc saved with a .docx extension.
	header := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	data := append(header, make([]byte, 1024)...)
	path := filepath.Join(t.TempDir(), "renamed.docx")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := (&wordEngine{}).Extract(context.Background(), path)
	if !errors.Is(err, ErrLegacyFormat) {
		t.Fatalf("err = %v, want ErrLegacyFormat", err)
	}
}

// --- XML bomb ---

func TestDOCX_XMLBomb(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("<w:p>")
	}
	b.WriteString("<w:r><w:t>deep</w:t></w:r>")
	for i := 0; i < 300; i++ {
		b.WriteString("</w:p>")
	}
	path := buildDocx(t, t.TempDir(), b.String())

	_, err := extractDocx(path)
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}

func TestODT_XMLBomb(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		b.WriteString("<text:p>")
	}
	b.WriteString("deep text")
	for i := 0; i < 300; i++ {
		b.WriteString("</text:p>")
	}
	path := buildODT(t, t.TempDir(), b.String())

	_, err := extractODT(path)
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := map[string]int{
		"Heading1": 1, "heading3": 3, "Title": 1, "Subtitle": 2,
		"Titre2": 2, "Normal": 0, "Heading7": 0, "": 0,
	}
	for style, want := range tests {
		if got := docxHeadingLevel(style); got != want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}
