// Package postgres stores the catalog in PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/catalog/internal/config"
	"github.com/JonMunkholm/catalog/internal/core"
)

//go:embed schema.sql
var schema string

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store implements core.Store.
type Store struct {
	db DBTX
}

var _ core.Store = (*Store)(nil)

// New wraps db, normally a *pgxpool.Pool.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the catalog tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) ListBrands(ctx context.Context) ([]core.Brand, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name FROM brands ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Brand, error) {
		var (
			id   pgtype.UUID
			name string
		)
		err := row.Scan(&id, &name)
		return core.Brand{ID: PgUUIDToString(id), Name: name}, err
	})
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY created_at, name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var (
			id         pgtype.UUID
			name, slug string
		)
		err := row.Scan(&id, &name, &slug)
		return core.Category{ID: PgUUIDToString(id), Name: name, Slug: slug}, err
	})
}

// CreateBrands inserts every name in one statement, so either all rows are
// created or none.
func (s *Store) CreateBrands(ctx context.Context, names []string) ([]core.Brand, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ids := make([]pgtype.UUID, len(names))
	for i := range names {
		ids[i] = NewPgUUID()
	}

	rows, err := s.db.Query(ctx, `
		INSERT INTO brands (id, name)
		SELECT * FROM unnest($1::uuid[], $2::text[])
		RETURNING id, name`, ids, names)
	if err != nil {
		return nil, fmt.Errorf("insert brands: %w", err)
	}
	brands, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Brand, error) {
		var (
			id   pgtype.UUID
			name string
		)
		err := row.Scan(&id, &name)
		return core.Brand{ID: PgUUIDToString(id), Name: name}, err
	})
	if err != nil {
		return nil, fmt.Errorf("insert brands: %w", err)
	}
	return brands, nil
}

// CreateCategories inserts every category in one statement.
func (s *Store) CreateCategories(ctx context.Context, cats []core.NewCategory) ([]core.Category, error) {
	if len(cats) == 0 {
		return nil, nil
	}
	ids := make([]pgtype.UUID, len(cats))
	names := make([]string, len(cats))
	slugs := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = NewPgUUID()
		names[i] = c.Name
		slugs[i] = c.Slug
	}

	rows, err := s.db.Query(ctx, `
		INSERT INTO categories (id, name, slug)
		SELECT * FROM unnest($1::uuid[], $2::text[], $3::text[])
		RETURNING id, name, slug`, ids, names, slugs)
	if err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}
	created, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var (
			id         pgtype.UUID
			name, slug string
		)
		err := row.Scan(&id, &name, &slug)
		return core.Category{ID: PgUUIDToString(id), Name: name, Slug: slug}, err
	})
	if err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}
	return created, nil
}

// InsertProduct writes one catalog entry.
func (s *Store) InsertProduct(ctx context.Context, p core.NewProduct) (core.Product, error) {
	price := ToPgNumeric(p.Price)
	if !price.Valid {
		return core.Product{}, fmt.Errorf("insert product: invalid number %q", p.Price)
	}

	var (
		id, brandID, categoryID      pgtype.UUID
		title                        string
		description, category, image pgtype.Text
		priceOut, originalPrice      pgtype.Numeric
		createdAt                    time.Time
	)
	err := s.db.QueryRow(ctx, `
		INSERT INTO products (id, title, description, price, original_price, brand_id, category_id, category, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, title, description, price, original_price, brand_id, category_id, category, image_url, created_at`,
		NewPgUUID(),
		p.Title,
		ToPgTextPtr(p.Description),
		price,
		ToPgNumericPtr(p.OriginalPrice),
		ToPgUUIDPtr(p.BrandID),
		ToPgUUIDPtr(p.CategoryID),
		ToPgTextPtr(p.Category),
		ToPgTextPtr(p.ImageURL),
	).Scan(&id, &title, &description, &priceOut, &originalPrice, &brandID, &categoryID, &category, &image, &createdAt)
	if err != nil {
		return core.Product{}, err
	}

	amount, _ := PgNumericToFloat(priceOut)
	return core.Product{
		ID:            PgUUIDToString(id),
		Title:         title,
		Description:   PgTextToPtr(description),
		Price:         amount,
		OriginalPrice: PgNumericToPtr(originalPrice),
		BrandID:       PgUUIDToPtr(brandID),
		CategoryID:    PgUUIDToPtr(categoryID),
		Category:      PgTextToPtr(category),
		ImageURL:      PgTextToPtr(image),
		CreatedAt:     createdAt,
	}, nil
}
