// Package sqlite stores the catalog in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog/internal/core"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store implements core.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ core.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Store) ListBrands(ctx context.Context) ([]core.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM brands ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var brands []core.Brand
	for rows.Next() {
		var b core.Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CreateBrands inserts every name inside one transaction.
func (s *Store) CreateBrands(ctx context.Context, names []string) ([]core.Brand, error) {
	if len(names) == 0 {
		return nil, nil
	}
	created := make([]core.Brand, 0, len(names))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO brands (id, name, created_at) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		ts := s.timestamp()
		for _, name := range names {
			b := core.Brand{ID: uuid.NewString(), Name: name}
			if _, err := stmt.ExecContext(ctx, b.ID, b.Name, ts); err != nil {
				return err
			}
			created = append(created, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert brands: %w", err)
	}
	return created, nil
}

// CreateCategories inserts every category inside one transaction.
func (s *Store) CreateCategories(ctx context.Context, cats []core.NewCategory) ([]core.Category, error) {
	if len(cats) == 0 {
		return nil, nil
	}
	created := make([]core.Category, 0, len(cats))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO categories (id, name, slug, created_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		ts := s.timestamp()
		for _, nc := range cats {
			c := core.Category{ID: uuid.NewString(), Name: nc.Name, Slug: nc.Slug}
			if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Slug, ts); err != nil {
				return err
			}
			created = append(created, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}
	return created, nil
}

// InsertProduct writes one catalog entry.
func (s *Store) InsertProduct(ctx context.Context, p core.NewProduct) (core.Product, error) {
	price, err := parseAmount(p.Price)
	if err != nil {
		return core.Product{}, fmt.Errorf("insert product: %w", err)
	}
	var original sql.NullFloat64
	if p.OriginalPrice != nil {
		v, err := parseAmount(*p.OriginalPrice)
		if err != nil {
			return core.Product{}, fmt.Errorf("insert product: %w", err)
		}
		original = sql.NullFloat64{Float64: v, Valid: true}
	}

	created := s.now().UTC()
	product := core.Product{
		ID:          uuid.NewString(),
		Title:       p.Title,
		Description: p.Description,
		Price:       price,
		BrandID:     p.BrandID,
		CategoryID:  p.CategoryID,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		CreatedAt:   created,
	}
	if original.Valid {
		product.OriginalPrice = &original.Float64
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, title, description, price, original_price, brand_id, category_id, category, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Title,
		nullString(p.Description),
		price,
		original,
		nullString(p.BrandID),
		nullString(p.CategoryID),
		nullString(p.Category),
		nullString(p.ImageURL),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return core.Product{}, err
	}
	return product, nil
}

// CountProducts returns the number of stored products.
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
