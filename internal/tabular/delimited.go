package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText strips a byte order mark and replaces invalid UTF-8 with
// U+FFFD. A UTF-16 BOM switches decoding to UTF-16, which covers the
// "Unicode text" export of most spreadsheet applications.
func decodeText(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

func extractDelimited(data []byte, comma rune) (*Table, error) {
	reader := csv.NewReader(decodeText(bytes.NewReader(data)))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Reason: "empty file", Err: ErrEmptyFile}
	}
	if err != nil {
		return nil, &ParseError{Reason: "invalid csv header", Err: err}
	}

	table := &Table{Headers: headers}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Reason: "invalid csv", Err: err}
		}

		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		values, ok := buildRow(headers, record)
		if !ok {
			continue
		}
		table.Rows = append(table.Rows, Row{Number: len(table.Rows) + 2, Values: values})
	}

	return table, nil
}
