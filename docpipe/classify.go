package docpipe

import (
	"path/filepath"
	"sort"
	"strings"
)

var categoryByExt = map[string]Category{
	".xlsx":     CategorySpreadsheet,
	".xls":      CategorySpreadsheet,
	".docx":     CategoryWordProcessor,
	".doc":      CategoryWordProcessor,
	".odt":      CategoryWordProcessor,
	".pdf":      CategoryPDF,
	".jpg":      CategoryImage,
	".jpeg":     CategoryImage,
	".png":      CategoryImage,
	".bmp":      CategoryImage,
	".tiff":     CategoryImage,
	".tif":      CategoryImage,
	".gif":      CategoryImage,
	".webp":     CategoryImage,
	".md":       CategoryPlainText,
	".markdown": CategoryPlainText,
	".txt":      CategoryPlainText,
}

// Classify returns the category for path based on its extension.
func Classify(path string) (Category, bool) {
	c, ok := categoryByExt[strings.ToLower(filepath.Ext(path))]
	return c, ok
}

// SupportsCategory reports whether the pipeline can process c.
// Images need the ocr capability.
func (p *Pipeline) SupportsCategory(c Category) bool {
	switch c {
	case CategorySpreadsheet, CategoryWordProcessor, CategoryPDF, CategoryPlainText:
		return true
	case CategoryImage:
		return p.caps.Has(CapOCR)
	default:
		return false
	}
}

// IsSupported reports whether path would be accepted by Process, judging by
// its extension only.
func (p *Pipeline) IsSupported(path string) bool {
	c, ok := Classify(path)
	return ok && p.SupportsCategory(c)
}

// SupportedExtensions returns every accepted extension (with the leading
// dot), sorted.
func (p *Pipeline) SupportedExtensions() []string {
	var exts []string
	for ext, c := range categoryByExt {
		if p.SupportsCategory(c) {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}
