package docpipe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode"

	ledongpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

type pdfEngine struct {
	logger *slog.Logger
}

func (e *pdfEngine) Name() string { return "pdf" }

// Extract renders one unit per page that has text. A file pdfcpu cannot read
// yields a single diagnostic unit instead of an error.
func (e *pdfEngine) Extract(_ context.Context, path string) (*Extraction, error) {
	pages, quality, err := extractPDF(path)
	if err != nil {
		e.logger.Error("pdf: extraction failed", "path", path, "error", err)
		return &Extraction{
			Processor: "pdfcpu",
			Units:     []Unit{{Text: marker("Error processing PDF: " + err.Error()), Kind: "diagnostic"}},
			Extra:     map[string]any{"pages": 0},
		}, nil
	}

	var units []Unit
	for i, text := range pages {
		if text == "" {
			continue
		}
		units = append(units, Unit{Title: fmt.Sprintf("Page %d", i+1), Text: text, Kind: "page"})
	}
	if len(units) == 0 {
		units = []Unit{{Text: marker("No text extracted from PDF"), Kind: "diagnostic"}}
	}

	return &Extraction{
		Processor: "pdfcpu",
		Units:     units,
		Extra: map[string]any{
			"pages":     len(pages),
			"quality":   quality,
			"needs_ocr": quality.NeedsOCR(),
		},
	}, nil
}

// extractPDF returns the text of every page (empty string for pages without
// text) and quality metrics for the whole document.
func extractPDF(path string) ([]string, *ExtractionQuality, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]string, ctx.PageCount)
	missing := 0
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pages[pageNr-1] = extractPageText(ctx, pageNr)
		if pages[pageNr-1] == "" {
			missing++
		}
	}
	if missing > 0 {
		fillPlainText(path, pages)
	}

	quality := measureQuality(pages, detectImageStreams(ctx))
	return pages, quality, nil
}

// fillPlainText fills pages pdfcpu left empty using the font-aware text
// layout of ledongthuc/pdf. Pages it also cannot read stay empty.
func fillPlainText(path string, pages []string) {
	defer func() { _ = recover() }()

	f, r, err := ledongpdf.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	for i := range pages {
		if pages[i] != "" || i+1 > r.NumPage() {
			continue
		}
		pages[i] = plainPageText(r, i+1)
	}
}

func plainPageText(r *ledongpdf.Reader, pageNr int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	p := r.Page(pageNr)
	if p.V.IsNull() {
		return ""
	}
	raw, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return cleanPDFText(raw)
}

// extractPageText extracts text from a single PDF page via pdfcpu content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// detectImageStreams checks if the PDF contains image XObjects.
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

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// extractTextFromStream parses PDF content stream operators for text.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		// (text) Tj and [(text) -100 (more)] TJ
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}

		// (text) ' moves to the next line first.
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}

		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}

		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return cleanPDFText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			// Octal escape, up to three digits (\040 is a space).
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanPDFText collapses whitespace and drops unprintable runes. Bytes that
// are not valid UTF-8 are read as Latin-1 so the result is always text.
func cleanPDFText(text string) string {
	var sb strings.Builder
	prevSpace := false
	for i := 0; i < len(text); {
		r, size := rune(text[i]), 1
		if r >= 0x80 {
			r, size = decodeRuneLatin1(text[i:])
		}
		i += size
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
