package core

// validation.go checks canonical rows before anything is written.
//
// Every rule is evaluated independently so one row can collect several
// errors. Validation is a pure function of the row: the same input always
// produces the same errors in the same order.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError is a rule violation on one field of one row.
type ValidationError struct {
	Row     int    `json:"row"`
	Field   Field  `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	msgTitleRequired      = "Title is required"
	msgPriceInvalid       = "Valid price is required"
	msgOriginalPriceOrder = "Original price must be greater than price if provided"
)

// numericRegex matches plain decimal numbers with optional sign and exponent.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// parseAmount parses decimal text into a finite float.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ValidateRow returns every rule violation in row.
func ValidateRow(row CanonicalRow) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(row.Title) == "" {
		errs = append(errs, ValidationError{Row: row.Row, Field: FieldTitle, Message: msgTitleRequired})
	}

	price, priceOK := parseAmount(string(row.Price))
	if !priceOK || price <= 0 {
		errs = append(errs, ValidationError{
			Row:     row.Row,
			Field:   FieldPrice,
			Value:   string(row.Price),
			Message: msgPriceInvalid,
		})
	}

	if row.OriginalPrice != nil && strings.TrimSpace(string(*row.OriginalPrice)) != "" {
		// An unparseable price compares as 0.
		op, ok := parseAmount(string(*row.OriginalPrice))
		if !ok || op <= price {
			errs = append(errs, ValidationError{
				Row:     row.Row,
				Field:   FieldOriginalPrice,
				Value:   string(*row.OriginalPrice),
				Message: msgOriginalPriceOrder,
			})
		}
	}

	return errs
}

// ValidateRows validates rows in order and returns all errors.
func ValidateRows(rows []CanonicalRow) []ValidationError {
	var errs []ValidationError
	for _, row := range rows {
		errs = append(errs, ValidateRow(row)...)
	}
	return errs
}

// groupByRow indexes validation errors by row number, keeping order.
func groupByRow(errs []ValidationError) map[int][]ValidationError {
	byRow := make(map[int][]ValidationError)
	for _, e := range errs {
		byRow[e.Row] = append(byRow[e.Row], e)
	}
	return byRow
}

// joinMessages renders a row's validation errors as one outcome message.
func joinMessages(errs []ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}
