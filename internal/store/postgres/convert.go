package postgres

// convert.go moves values between the catalog types and pgtype.
// Empty or invalid input becomes a NULL (Valid=false) value.

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ToPgText converts s to pgtype.Text, NULL when blank.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgTextPtr converts an optional string.
func ToPgTextPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return ToPgText(*s)
}

// ToPgNumeric converts decimal text to pgtype.Numeric, NULL when the text
// is blank or not a number.
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{}
	}
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// ToPgNumericPtr converts optional decimal text.
func ToPgNumericPtr(s *string) pgtype.Numeric {
	if s == nil {
		return pgtype.Numeric{}
	}
	return ToPgNumeric(*s)
}

// ToPgUUID parses s as a UUID, NULL when empty or malformed.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// ToPgUUIDPtr converts an optional id.
func ToPgUUIDPtr(s *string) pgtype.UUID {
	if s == nil {
		return pgtype.UUID{}
	}
	return ToPgUUID(*s)
}

// NewPgUUID returns a fresh random id.
func NewPgUUID() pgtype.UUID {
	return pgtype.UUID{Bytes: uuid.New(), Valid: true}
}

// PgUUIDToString formats u, or returns "" for NULL.
func PgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

// PgUUIDToPtr formats u, or returns nil for NULL.
func PgUUIDToPtr(u pgtype.UUID) *string {
	if !u.Valid {
		return nil
	}
	s := uuid.UUID(u.Bytes).String()
	return &s
}

// PgTextToPtr returns nil for NULL text.
func PgTextToPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// PgNumericToFloat converts n to float64. NULL and NaN report false.
func PgNumericToFloat(n pgtype.Numeric) (float64, bool) {
	if !n.Valid || n.NaN {
		return 0, false
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return 0, false
	}
	return f.Float64, true
}

// PgNumericToPtr converts n to an optional float64.
func PgNumericToPtr(n pgtype.Numeric) *float64 {
	f, ok := PgNumericToFloat(n)
	if !ok {
		return nil
	}
	return &f
}
