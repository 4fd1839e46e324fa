package tabular

import "errors"

var (
	// ErrUnsupportedFormat is returned for file types the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when the upload has no bytes or no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrSheetNotFound is returned when a named sheet is absent from the workbook.
	ErrSheetNotFound = errors.New("sheet not found")
)

// ParseError reports input that could not be read as a table.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Reason {
		return "parse error: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
