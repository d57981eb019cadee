package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// workbook is the sheet-level view the spreadsheet engine renders.
type workbook interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
	Close() error
}

type spreadsheetEngine struct {
	logger *slog.Logger
}

func (e *spreadsheetEngine) Name() string { return "spreadsheet" }

// Extract renders one unit per sheet. A sheet that cannot be read becomes
// an error heading; the remaining sheets are still rendered.
func (e *spreadsheetEngine) Extract(_ context.Context, path string) (*Extraction, error) {
	wb, processor, err := openWorkbook(path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	names := wb.SheetNames()
	units := renderWorkbook(wb, names, e.logger.With("path", path))
	return &Extraction{
		Processor: processor,
		Units:     units,
		Extra:     map[string]any{"sheets": names},
	}, nil
}

func renderWorkbook(wb workbook, names []string, logger *slog.Logger) []Unit {
	units := make([]Unit, 0, len(names))
	for _, name := range names {
		rows, err := sheetRows(wb, name)
		if err != nil {
			logger.Warn("spreadsheet: sheet unreadable", "sheet", name, "error", err)
			units = append(units, Unit{
				Title: fmt.Sprintf("Sheet: %s (Error: %v)", name, err),
				Kind:  "sheet",
			})
			continue
		}
		rows = trimGrid(rows)
		text := marker("Empty sheet")
		if len(rows) > 0 {
			text = renderTable(rows)
		}
		units = append(units, Unit{
			Title: "Sheet: " + name,
			Text:  text,
			Kind:  "sheet",
		})
	}
	if len(units) == 0 {
		units = append(units, Unit{Text: marker("No sheets found"), Kind: "diagnostic"})
	}
	return units
}

// sheetRows isolates one sheet's read, including parser panics.
func sheetRows(wb workbook, name string) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read sheet: %v", r)
		}
	}()
	return wb.Rows(name)
}

func openWorkbook(path string) (workbook, string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		wb, err := openXLS(path)
		return wb, "xls", err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("open workbook: %w", err)
	}
	return &xlsxBook{f: f}, "excelize", nil
}

type xlsxBook struct {
	f *excelize.File
}

func (b *xlsxBook) SheetNames() []string { return b.f.GetSheetList() }

func (b *xlsxBook) Rows(sheet string) ([][]string, error) { return b.f.GetRows(sheet) }

func (b *xlsxBook) Close() error { return b.f.Close() }

// xlsBook reads legacy BIFF workbooks.
type xlsBook struct {
	file *os.File
	wb   *xls.WorkBook
}

func openXLS(path string) (b *xlsBook, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open xls: %v", r)
		}
		if err != nil {
			f.Close()
		}
	}()
	wb, err := xls.OpenReader(f, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}
	return &xlsBook{file: f, wb: wb}, nil
}

func (b *xlsBook) SheetNames() []string {
	var names []string
	for i := 0; i < b.wb.NumSheets(); i++ {
		if s := b.wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		}
	}
	return names
}

func (b *xlsBook) Rows(sheet string) ([][]string, error) {
	for i := 0; i < b.wb.NumSheets(); i++ {
		s := b.wb.GetSheet(i)
		if s == nil || s.Name != sheet {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(s.MaxRow); r++ {
			row := s.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			rows = append(rows, cells)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("sheet %q not found", sheet)
}

func (b *xlsBook) Close() error { return b.file.Close() }
