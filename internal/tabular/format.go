package tabular

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the family of an uploaded file.
type Format int

const (
	FormatUnknown Format = iota
	FormatDelimited
	FormatWorkbook
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatWorkbook:
		return "workbook"
	default:
		return "unknown"
	}
}

// extensions maps a lowercase file extension to its format and delimiter.
var extensions = map[string]struct {
	format Format
	comma  rune
}{
	".csv":  {FormatDelimited, ','},
	".txt":  {FormatDelimited, ','},
	".tsv":  {FormatDelimited, '\t'},
	".tab":  {FormatDelimited, '\t'},
	".xlsx": {FormatWorkbook, 0},
	".xlsm": {FormatWorkbook, 0},
	".xltx": {FormatWorkbook, 0},
	".xltm": {FormatWorkbook, 0},
}

// DetectFormat picks the format and delimiter from a file name.
// Legacy binary .xls files are rejected along with anything unrecognised.
func DetectFormat(filename string) (Format, rune, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if e, ok := extensions[ext]; ok {
		return e.format, e.comma, nil
	}
	if ext == "" {
		return FormatUnknown, 0, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, filename)
	}
	return FormatUnknown, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}
