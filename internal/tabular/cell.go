package tabular

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// CellKind tags the underlying value of a workbook cell.
type CellKind int

const (
	KindEmpty CellKind = iota
	KindText
	KindNumber
	KindBool
	KindDate
	KindFormula
	KindError
)

// Cell is a workbook cell before it is rendered to text.
//
// Display is the formatted text the spreadsheet application shows. When it
// is blank the cell falls back to a rendering of its underlying value:
// dates become YYYY-MM-DD, formulas become their computed result, and
// everything else becomes its plain textual form.
type Cell struct {
	Kind    CellKind
	Display string
	Raw     string
	Time    time.Time
	Formula string
	Result  string
}

// Text renders the cell to the trimmed string used as a header or value.
func (c Cell) Text() string {
	if d := strings.TrimSpace(c.Display); d != "" {
		return d
	}

	var s string
	switch c.Kind {
	case KindText, KindError:
		s = c.Raw
	case KindNumber:
		s = renderNumber(c.Raw)
	case KindBool:
		s = renderBool(c.Raw)
	case KindDate:
		if !c.Time.IsZero() {
			s = c.Time.Format(time.DateOnly)
		} else {
			s = c.Raw
		}
	case KindFormula:
		s = c.Result
	}
	return strings.TrimSpace(s)
}

func renderNumber(raw string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderBool(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true":
		return "true"
	case "0", "false":
		return "false"
	}
	return raw
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateOnly,
}

// parseCellDate reads the value of a date-typed cell, stored either as an
// ISO 8601 string or as an Excel serial number.
func parseCellDate(raw string, date1904 bool) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, date1904); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
