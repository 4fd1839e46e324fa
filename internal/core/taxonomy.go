package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/JonMunkholm/catalog/internal/logging"
)

// TaxonomyStore reads and bulk-creates brands and categories.
// CreateBrands and CreateCategories must create every entry or none.
type TaxonomyStore interface {
	ListBrands(ctx context.Context) ([]Brand, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateBrands(ctx context.Context, names []string) ([]Brand, error)
	CreateCategories(ctx context.Context, cats []NewCategory) ([]Category, error)
}

// TaxonomyFailurePolicy decides what a failed bulk create does to the batch.
type TaxonomyFailurePolicy string

const (
	// TaxonomyAbort fails the whole import before any product is written.
	TaxonomyAbort TaxonomyFailurePolicy = "abort"
	// TaxonomyIsolate fails only the rows that reference a name that could
	// not be created.
	TaxonomyIsolate TaxonomyFailurePolicy = "isolate"
)

// ParseTaxonomyFailurePolicy accepts "abort" or "isolate".
func ParseTaxonomyFailurePolicy(s string) (TaxonomyFailurePolicy, error) {
	switch p := TaxonomyFailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case TaxonomyAbort, TaxonomyIsolate:
		return p, nil
	case "":
		return TaxonomyAbort, nil
	default:
		return "", fmt.Errorf("unknown taxonomy failure policy %q", s)
	}
}

// TaxonomyCreationError reports a failed bulk create of brands or categories.
type TaxonomyCreationError struct {
	Kind  string
	Names []string
	Err   error
}

func (e *TaxonomyCreationError) Error() string {
	return fmt.Sprintf("failed to create %s: %v", pluralKind(e.Kind), e.Err)
}

func (e *TaxonomyCreationError) Unwrap() error {
	return e.Err
}

func pluralKind(kind string) string {
	if kind == "category" {
		return "categories"
	}
	return kind + "s"
}

// NormalizeKey is the comparison key for taxonomy names: trimmed and case
// folded, so "Nike", " nike " and "NIKE" collide.
func NormalizeKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

var slugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and collapses each run of characters outside
// [a-z0-9] into one hyphen. Leading and trailing hyphens are dropped.
func Slugify(name string) string {
	s := slugRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// TaxonomyIndex maps normalized names to ids for one batch.
type TaxonomyIndex struct {
	brands     map[string]string
	categories map[string]string

	failedBrands     map[string]error
	failedCategories map[string]error

	CreatedBrands     []Brand
	CreatedCategories []Category
}

func newTaxonomyIndex() *TaxonomyIndex {
	return &TaxonomyIndex{
		brands:           make(map[string]string),
		categories:       make(map[string]string),
		failedBrands:     make(map[string]error),
		failedCategories: make(map[string]error),
	}
}

// BrandID resolves a brand name. A nil or unknown name resolves to nil; an
// error is returned only for a name whose creation failed.
func (x *TaxonomyIndex) BrandID(name *string) (*string, error) {
	return x.lookup(name, x.brands, x.failedBrands)
}

// CategoryID resolves a category name the same way as BrandID.
func (x *TaxonomyIndex) CategoryID(name *string) (*string, error) {
	return x.lookup(name, x.categories, x.failedCategories)
}

func (x *TaxonomyIndex) lookup(name *string, ids map[string]string, failed map[string]error) (*string, error) {
	if x == nil || name == nil {
		return nil, nil
	}
	key := NormalizeKey(*name)
	if key == "" {
		return nil, nil
	}
	if err, ok := failed[key]; ok {
		return nil, err
	}
	if id, ok := ids[key]; ok {
		return &id, nil
	}
	return nil, nil
}

// TaxonomyResolver finds or creates the brands and categories a batch needs.
type TaxonomyResolver struct {
	store  TaxonomyStore
	policy TaxonomyFailurePolicy
}

// NewTaxonomyResolver returns a resolver using store and policy.
func NewTaxonomyResolver(store TaxonomyStore, policy TaxonomyFailurePolicy) *TaxonomyResolver {
	if policy == "" {
		policy = TaxonomyAbort
	}
	return &TaxonomyResolver{store: store, policy: policy}
}

// Resolve reads existing taxonomy once, then creates every missing brand in
// one call and every missing category in one call. Names are deduplicated
// across the whole batch by normalized key, keeping the first spelling seen.
func (r *TaxonomyResolver) Resolve(ctx context.Context, rows []CanonicalRow) (*TaxonomyIndex, error) {
	var (
		brands     []Brand
		categories []Category
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		brands, err = r.store.ListBrands(gctx)
		if err != nil {
			return fmt.Errorf("list brands: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = r.store.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	index := newTaxonomyIndex()
	for _, b := range brands {
		if key := NormalizeKey(b.Name); key != "" {
			if _, dup := index.brands[key]; !dup {
				index.brands[key] = b.ID
			}
		}
	}
	for _, c := range categories {
		if key := NormalizeKey(c.Name); key != "" {
			if _, dup := index.categories[key]; !dup {
				index.categories[key] = c.ID
			}
		}
	}

	missingBrands := missingNames(rows, index.brands, func(row CanonicalRow) *string { return row.Brand })
	missingCategories := missingNames(rows, index.categories, func(row CanonicalRow) *string { return row.Category })

	log := logging.FromContext(ctx)

	if len(missingBrands) > 0 {
		created, err := r.store.CreateBrands(ctx, missingBrands)
		if err != nil {
			cerr := &TaxonomyCreationError{Kind: "brand", Names: missingBrands, Err: err}
			if err := r.fail(cerr, index.failedBrands); err != nil {
				return nil, err
			}
			log.Warn("brand creation failed, isolating rows", slog.Int("names", len(missingBrands)), slog.String("error", err.Error()))
		} else {
			for _, b := range created {
				index.brands[NormalizeKey(b.Name)] = b.ID
			}
			index.CreatedBrands = created
		}
	}

	if len(missingCategories) > 0 {
		newCats := make([]NewCategory, len(missingCategories))
		for i, name := range missingCategories {
			newCats[i] = NewCategory{Name: name, Slug: Slugify(name)}
		}
		created, err := r.store.CreateCategories(ctx, newCats)
		if err != nil {
			cerr := &TaxonomyCreationError{Kind: "category", Names: missingCategories, Err: err}
			if err := r.fail(cerr, index.failedCategories); err != nil {
				return nil, err
			}
			log.Warn("category creation failed, isolating rows", slog.Int("names", len(missingCategories)), slog.String("error", err.Error()))
		} else {
			for _, c := range created {
				index.categories[NormalizeKey(c.Name)] = c.ID
			}
			index.CreatedCategories = created
		}
	}

	if len(index.CreatedBrands) > 0 || len(index.CreatedCategories) > 0 {
		log.Info("taxonomy created",
			slog.Int("brands", len(index.CreatedBrands)),
			slog.Int("categories", len(index.CreatedCategories)),
		)
	}

	return index, nil
}

// fail applies the failure policy. Under isolate every name of the failed
// call is recorded so rows referencing it fail at commit.
func (r *TaxonomyResolver) fail(cerr *TaxonomyCreationError, failed map[string]error) error {
	if r.policy != TaxonomyIsolate {
		return cerr
	}
	for _, name := range cerr.Names {
		failed[NormalizeKey(name)] = cerr
	}
	return nil
}

// missingNames collects names absent from known, deduplicated by key.
func missingNames(rows []CanonicalRow, known map[string]string, pick func(CanonicalRow) *string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, row := range rows {
		name := pick(row)
		if name == nil {
			continue
		}
		trimmed := strings.TrimSpace(*name)
		key := NormalizeKey(trimmed)
		if key == "" {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, trimmed)
	}
	return names
}

// IsTaxonomyCreationError reports whether err came from a failed bulk create.
func IsTaxonomyCreationError(err error) bool {
	var cerr *TaxonomyCreationError
	return errors.As(err, &cerr)
}
