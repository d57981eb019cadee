package docpipe

import (
	"regexp"
	"strings"
	"unicode"
)

// ExtractionQuality describes how usable a PDF's text layer is. It is
// reported as metadata["quality"]; a low score suggests a scan.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
	VisualRefCount  int     `json:"visual_ref_count"`
}

// Thresholds below which a text layer is considered missing or garbled.
const (
	minCharsPerPage   = 50
	minPrintableRatio = 0.85
)

// NeedsOCR reports whether the text layer looks like a scan: little text
// over embedded images, or text that is mostly unprintable.
func (q *ExtractionQuality) NeedsOCR() bool {
	if q == nil {
		return false
	}
	sparse := q.CharsPerPage < minCharsPerPage && q.HasImageStreams
	return sparse || q.PrintableRatio < minPrintableRatio
}

// measureQuality scores the extracted pages. Empty pages count toward the
// page total but contribute no text.
func measureQuality(pages []string, hasImages bool) *ExtractionQuality {
	text := strings.Join(nonEmpty(pages), "\n")
	q := &ExtractionQuality{
		PageCount:       len(pages),
		PrintableRatio:  printableRatio(text),
		WordlikeRatio:   wordlikeRatio(text),
		HasImageStreams: hasImages,
		VisualRefCount:  len(figureRefRe.FindAllStringIndex(text, -1)),
	}
	if len(pages) > 0 {
		runes := 0
		for _, p := range pages {
			runes += len([]rune(p))
		}
		q.CharsPerPage = float64(runes) / float64(len(pages))
	}
	return q
}

func nonEmpty(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// printableRatio is 1 for empty text. Private-use runes, U+FFFD and C0
// controls other than line breaks and tabs count against it; these are
// what CID fonts without a ToUnicode map decode to.
func printableRatio(text string) float64 {
	total, good := 0, 0
	for _, r := range text {
		total++
		switch {
		case r >= 0xE000 && r <= 0xF8FF, r == unicode.ReplacementChar:
		case r == '\n', r == '\r', r == '\t':
			good++
		case unicode.IsPrint(r):
			good++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}

// wordlikeRatio is the share of whitespace-separated tokens 2 to 15 runes
// long. Text extracted one glyph at a time scores near zero.
func wordlikeRatio(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	n := 0
	for _, tok := range tokens {
		if l := len([]rune(tok)); l >= 2 && l <= 15 {
			n++
		}
	}
	return float64(n) / float64(len(tokens))
}

// figureRefRe matches numbered references to figures, tables and diagrams,
// in English or French.
var figureRefRe = regexp.MustCompile(`(?i)\b(?:figure|fig\.|tableau|table|sch[eé]ma|illustration|graphique|graph|diagramme|diagram)\s*\d+`)
