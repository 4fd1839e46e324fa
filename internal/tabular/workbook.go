package tabular

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

func openWorkbook(data []byte) (*excelize.File, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Reason: "invalid workbook", Err: err}
	}
	return f, nil
}

// sheetReader resolves single cells of one sheet.
type sheetReader struct {
	f        *excelize.File
	sheet    string
	date1904 bool
}

func extractWorkbook(data []byte, sheet string) (*Table, error) {
	f, err := openWorkbook(data)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Reason: "workbook has no sheets", Err: ErrEmptyFile}
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if !slices.Contains(sheets, sheet) {
		return nil, &ParseError{Reason: fmt.Sprintf("sheet %q not found", sheet), Err: ErrSheetNotFound}
	}

	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
	}
	if len(grid) == 0 {
		return nil, &ParseError{Reason: fmt.Sprintf("sheet %q is empty", sheet), Err: ErrEmptyFile}
	}

	sr := &sheetReader{f: f, sheet: sheet}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		sr.date1904 = *props.Date1904
	}

	headers := make([]string, len(grid[0]))
	for i := range headers {
		text, err := sr.text(grid[0], i, 1)
		if err != nil {
			return nil, err
		}
		if text == "" {
			text = fmt.Sprintf("Column %d", i+1)
		}
		headers[i] = text
	}
	if len(headers) == 0 {
		return nil, &ParseError{Reason: fmt.Sprintf("sheet %q has no header row", sheet), Err: ErrEmptyFile}
	}

	table := &Table{Sheet: sheet, Headers: headers}
	cells := make([]string, len(headers))
	for r := 1; r < len(grid); r++ {
		for c := range cells {
			text, err := sr.text(grid[r], c, r+1)
			if err != nil {
				return nil, err
			}
			cells[c] = text
		}
		values, ok := buildRow(headers, cells)
		if !ok {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: len(table.Rows) + 2, Values: values})
	}

	return table, nil
}

// text returns the rendered text of column col (0-based) in row (1-based),
// using the formatted value from GetRows when it is not blank.
func (s *sheetReader) text(displayRow []string, col, row int) (string, error) {
	var display string
	if col < len(displayRow) {
		display = displayRow[col]
	}
	if strings.TrimSpace(display) != "" {
		return Cell{Display: display}.Text(), nil
	}
	cell, err := s.cell(col+1, row)
	if err != nil {
		return "", err
	}
	return cell.Text(), nil
}

// cell loads the underlying value of the cell at 1-based col and row.
func (s *sheetReader) cell(col, row int) (Cell, error) {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, &ParseError{Reason: "invalid cell reference", Err: err}
	}

	formula, err := s.f.GetCellFormula(s.sheet, axis)
	if err != nil {
		return Cell{}, &ParseError{Reason: "read formula " + axis, Err: err}
	}
	if formula != "" {
		// A formula the engine cannot evaluate renders as blank.
		result, err := s.f.CalcCellValue(s.sheet, axis)
		if err != nil {
			result = ""
		}
		return Cell{Kind: KindFormula, Formula: formula, Result: result}, nil
	}

	typ, err := s.f.GetCellType(s.sheet, axis)
	if err != nil {
		return Cell{}, &ParseError{Reason: "read cell type " + axis, Err: err}
	}
	raw, err := s.f.GetCellValue(s.sheet, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		return Cell{}, &ParseError{Reason: "read cell " + axis, Err: err}
	}
	if raw == "" {
		return Cell{Kind: KindEmpty}, nil
	}

	switch typ {
	case excelize.CellTypeBool:
		return Cell{Kind: KindBool, Raw: raw}, nil
	case excelize.CellTypeDate:
		t, _ := parseCellDate(raw, s.date1904)
		return Cell{Kind: KindDate, Raw: raw, Time: t}, nil
	case excelize.CellTypeError:
		return Cell{Kind: KindError, Raw: raw}, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		return Cell{Kind: KindNumber, Raw: raw}, nil
	default:
		return Cell{Kind: KindText, Raw: raw}, nil
	}
}
