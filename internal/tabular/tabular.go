// Package tabular turns uploaded spreadsheet bytes into header-keyed rows.
//
// Two families of input are supported:
//
//   - Delimited text (.csv, .txt, .tsv, .tab): the first line is the header
//     row and every later line is a record. Field names are used exactly as
//     written, apart from a leading byte order mark.
//   - Workbooks (.xlsx, .xlsm, .xltx, .xltm): row 1 of the chosen sheet is
//     the header row. Header and data cells are rendered to text the way a
//     spreadsheet application would display them (see [Cell]).
//
// Rows that carry no non-empty cell are dropped. Every surviving row gets a
// 1-based Number equal to its position among surviving rows plus one, so the
// first data row is row 2 and lines up with the spreadsheet the user sees.
package tabular

import (
	"fmt"
)

// Row is one data row keyed by header name.
//
// Values holds an entry for every header in the table, blank when the
// source cell was empty or missing. When two header cells share a name the
// leftmost column wins.
type Row struct {
	Number int               `json:"row"`
	Values map[string]string `json:"values"`
}

// Get returns the value stored under header and whether the header exists.
func (r Row) Get(header string) (string, bool) {
	v, ok := r.Values[header]
	return v, ok
}

// Table is the extracted content of one delimited file or workbook sheet.
type Table struct {
	Sheet   string   `json:"sheet,omitempty"`
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// Source describes how to read one uploaded file.
type Source struct {
	Format Format
	// Comma is the field delimiter for delimited text. Zero means ','.
	Comma rune
	// Sheet selects a workbook sheet. Empty means the first sheet.
	Sheet string
}

// SourceFor builds a Source from the uploaded file name and an optional
// sheet selection.
func SourceFor(filename, sheet string) (Source, error) {
	format, comma, err := DetectFormat(filename)
	if err != nil {
		return Source{}, err
	}
	return Source{Format: format, Comma: comma, Sheet: sheet}, nil
}

// Extract reads data according to src and returns the header row plus the
// non-empty data rows.
func Extract(data []byte, src Source) (*Table, error) {
	if len(data) == 0 {
		return nil, &ParseError{Reason: "empty file", Err: ErrEmptyFile}
	}

	switch src.Format {
	case FormatDelimited:
		comma := src.Comma
		if comma == 0 {
			comma = ','
		}
		return extractDelimited(data, comma)
	case FormatWorkbook:
		return extractWorkbook(data, src.Sheet)
	default:
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, src.Format)
	}
}

// ListSheets returns the sheet names of a workbook in workbook order.
func ListSheets(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, &ParseError{Reason: "empty file", Err: ErrEmptyFile}
	}
	f, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

// buildRow assigns cells to headers and reports whether any cell had data.
// Cells beyond the header width are ignored.
func buildRow(headers []string, cells []string) (map[string]string, bool) {
	values := make(map[string]string, len(headers))
	hasData := false
	for i, h := range headers {
		if _, seen := values[h]; seen {
			continue
		}
		v := ""
		if i < len(cells) {
			v = cells[i]
		}
		values[h] = v
		if v != "" {
			hasData = true
		}
	}
	return values, hasData
}
