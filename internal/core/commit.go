package core

import (
	"context"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// ProductStore writes single catalog entries.
type ProductStore interface {
	InsertProduct(ctx context.Context, p NewProduct) (Product, error)
}

// CommitOutcome is the result of one row.
type CommitOutcome struct {
	Row     int      `json:"row"`
	Success bool     `json:"success"`
	Product *Product `json:"product,omitempty"`
	Error   string   `json:"error,omitempty"`
	// Field names the first offending field of a rejected row.
	Field Field `json:"field,omitempty"`
}

// CommitExecutor inserts valid rows one at a time in row order.
type CommitExecutor struct {
	store ProductStore
}

// NewCommitExecutor returns an executor writing to store.
func NewCommitExecutor(store ProductStore) *CommitExecutor {
	return &CommitExecutor{store: store}
}

// Execute produces exactly one outcome per row, in row order.
//
// Rows listed in rejected are reported as failed with their validation
// messages and are not written. Every other row is inserted and awaited
// before the next begins; a failed insert is recorded and the loop moves
// on. Nothing already written is rolled back.
func (e *CommitExecutor) Execute(ctx context.Context, rows []CanonicalRow, rejected map[int][]ValidationError, index *TaxonomyIndex) []CommitOutcome {
	log := logging.FromContext(ctx)
	outcomes := make([]CommitOutcome, 0, len(rows))

	for _, row := range rows {
		if errs, ok := rejected[row.Row]; ok && len(errs) > 0 {
			outcomes = append(outcomes, CommitOutcome{Row: row.Row, Error: joinMessages(errs), Field: errs[0].Field})
			continue
		}

		payload, field, err := buildProduct(row, index)
		if err != nil {
			outcomes = append(outcomes, CommitOutcome{Row: row.Row, Error: err.Error(), Field: field})
			continue
		}

		product, err := e.store.InsertProduct(ctx, payload)
		if err != nil {
			log.Warn("row insert failed", slog.Int("row", row.Row), slog.String("error", err.Error()))
			outcomes = append(outcomes, CommitOutcome{Row: row.Row, Error: err.Error()})
			continue
		}
		outcomes = append(outcomes, CommitOutcome{Row: row.Row, Success: true, Product: &product})
	}

	return outcomes
}

// buildProduct turns a valid row into an insert payload. Only a name whose
// creation failed under the isolate policy produces an error, reported
// against the field that named it. Optional text is trimmed and blank text
// becomes NULL.
func buildProduct(row CanonicalRow, index *TaxonomyIndex) (NewProduct, Field, error) {
	brandID, err := index.BrandID(row.Brand)
	if err != nil {
		return NewProduct{}, FieldBrand, err
	}
	categoryID, err := index.CategoryID(row.Category)
	if err != nil {
		return NewProduct{}, FieldCategory, err
	}

	p := NewProduct{
		Title:       strings.TrimSpace(row.Title),
		Description: trimmedText(row.Description),
		Price:       strings.TrimSpace(string(row.Price)),
		BrandID:     brandID,
		CategoryID:  categoryID,
		Category:    trimmedText(row.Category),
	}
	if row.OriginalPrice != nil {
		if op := strings.TrimSpace(string(*row.OriginalPrice)); op != "" {
			p.OriginalPrice = &op
		}
	}
	return p, "", nil
}
