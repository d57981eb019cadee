package docpipe

import (
	"path/filepath"
	"strings"
)

// canonicalize renders units as headed blocks separated by blank lines and
// builds the provenance metadata. It performs no I/O.
func canonicalize(ext *Extraction, cat Category, path string, size int64) *Result {
	blocks := make([]string, 0, len(ext.Units))
	for _, u := range ext.Units {
		var b strings.Builder
		if u.Title != "" {
			b.WriteString("## ")
			b.WriteString(u.Title)
			if u.Text != "" {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(u.Text)
		if b.Len() > 0 {
			blocks = append(blocks, b.String())
		}
	}
	content := strings.ToValidUTF8(strings.Join(blocks, "\n\n"), "�")

	meta := make(map[string]any, len(ext.Extra)+6)
	for k, v := range ext.Extra {
		meta[k] = v
	}
	meta["processor"] = ext.Processor
	meta["filePath"] = path
	meta["fileSize"] = size
	meta["fileType"] = strings.ToLower(filepath.Ext(path))
	meta["fileCategory"] = string(cat)

	return &Result{
		Content:      content,
		Metadata:     meta,
		FileCategory: cat,
	}
}

// marker formats an inline diagnostic or placeholder.
func marker(msg string) string {
	return "*(" + msg + ")*"
}

// renderTable renders rows as a pipe-delimited table. The first row is the
// header; short rows are padded to the widest row.
func renderTable(rows [][]string) string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return ""
	}

	var b strings.Builder
	writeRow := func(r []string) {
		b.WriteString("|")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(r) {
				cell = tableCell(r[i])
			}
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}

	writeRow(rows[0])
	b.WriteString("|")
	for i := 0; i < width; i++ {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// trimGrid drops blank rows and the blank columns at both edges of the
// grid, so the first row left is the first row with content.
func trimGrid(rows [][]string) [][]string {
	var kept [][]string
	first := -1
	for _, r := range rows {
		lead := firstFilled(r)
		if lead < 0 {
			continue
		}
		if first < 0 || lead < first {
			first = lead
		}
		kept = append(kept, r)
	}

	out := make([][]string, len(kept))
	for i, r := range kept {
		end := len(r)
		for end > first && strings.TrimSpace(r[end-1]) == "" {
			end--
		}
		out[i] = r[first:end]
	}
	return out
}

// firstFilled returns the index of the first non-blank cell, or -1.
func firstFilled(row []string) int {
	for i, c := range row {
		if strings.TrimSpace(c) != "" {
			return i
		}
	}
	return -1
}
