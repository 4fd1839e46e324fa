package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/catalog/internal/tabular"
)

// RawRow is one extracted row keyed by header text. All values are text.
type RawRow = tabular.Row

// Field names a semantic catalog field.
type Field string

const (
	FieldTitle         Field = "title"
	FieldPrice         Field = "price"
	FieldOriginalPrice Field = "original_price"
	FieldDescription   Field = "description"
	FieldCategory      Field = "category"
	FieldBrand         Field = "brand"
)

// Fields lists every semantic field in canonical order.
var Fields = []Field{
	FieldTitle,
	FieldPrice,
	FieldOriginalPrice,
	FieldDescription,
	FieldCategory,
	FieldBrand,
}

// NumberText is numeric text as it appeared in the source. It decodes from
// either a JSON string or a JSON number so API callers may send both.
type NumberText string

func (n *NumberText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumberText(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("number must be a string or a number: %w", err)
	}
	*n = NumberText(num.String())
	return nil
}

// CanonicalRow is a RawRow mapped onto the fixed catalog fields.
//
// Title and Price are empty when absent. The optional fields are nil when
// no alias matched or the matched cell was blank.
type CanonicalRow struct {
	Row           int         `json:"row"`
	Title         string      `json:"title"`
	Price         NumberText  `json:"price"`
	OriginalPrice *NumberText `json:"original_price,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Category      *string     `json:"category,omitempty"`
	Brand         *string     `json:"brand,omitempty"`
}

// Brand is a taxonomy entity identified by display name.
type Brand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is a taxonomy entity with a URL slug.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// NewCategory is a category waiting to be created.
type NewCategory struct {
	Name string
	Slug string
}

// NewProduct is the catalog entry payload built from one valid row.
// Price and OriginalPrice hold validated decimal text.
type NewProduct struct {
	Title         string
	Description   *string
	Price         string
	OriginalPrice *string
	BrandID       *string
	CategoryID    *string
	// Category keeps the plain category name for older readers of the catalog.
	Category *string
	ImageURL *string
}

// Product is a committed catalog entry.
type Product struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"original_price"`
	BrandID       *string   `json:"brand_id"`
	CategoryID    *string   `json:"category_id"`
	Category      *string   `json:"category"`
	ImageURL      *string   `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// optionalText trims s and returns nil when nothing is left.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// trimmedText is optionalText for a value that may be absent.
func trimmedText(s *string) *string {
	if s == nil {
		return nil
	}
	return optionalText(*s)
}
