package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalog/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"brands", "categories", "products"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.CreateBrands(ctx, []string{"Acme"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Acme", brands[0].Name)
}

func TestCreateAndListTaxonomy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	assert.Empty(t, brands)

	created, err := s.CreateBrands(ctx, []string{"Acme", "Globex"})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEmpty(t, created[0].ID)
	assert.NotEqual(t, created[0].ID, created[1].ID)

	brands, err = s.ListBrands(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, created, brands)

	cats, err := s.CreateCategories(ctx, []core.NewCategory{{Name: "Home Goods", Slug: "home-goods"}})
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "home-goods", cats[0].Slug)

	listed, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, cats, listed)
}

func TestCreate_Empty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brands, err := s.CreateBrands(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, brands)

	cats, err := s.CreateCategories(ctx, nil)
	assert.NoError(t, err)
	assert.Nil(t, cats)
}

func TestInsertProduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	brands, err := s.CreateBrands(ctx, []string{"Acme"})
	require.NoError(t, err)

	p, err := s.InsertProduct(ctx, core.NewProduct{
		Title:         "Widget",
		Price:         "19.99",
		OriginalPrice: strPtr("24.99"),
		Description:   strPtr("A widget"),
		BrandID:       &brands[0].ID,
		Category:      strPtr("Tools"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 19.99, p.Price)
	require.NotNil(t, p.OriginalPrice)
	assert.Equal(t, 24.99, *p.OriginalPrice)
	assert.Equal(t, brands[0].ID, *p.BrandID)
	assert.Nil(t, p.CategoryID)
	assert.False(t, p.CreatedAt.IsZero())

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertProduct_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertProduct(ctx, core.NewProduct{Title: "Bad", Price: "abc"})
	assert.ErrorContains(t, err, "invalid number")

	_, err = s.InsertProduct(ctx, core.NewProduct{Title: "Free", Price: "0"})
	assert.Error(t, err, "price check constraint")

	missing := "00000000-0000-0000-0000-000000000000"
	_, err = s.InsertProduct(ctx, core.NewProduct{Title: "Orphan", Price: "1", BrandID: &missing})
	assert.Error(t, err, "foreign key")

	n, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportThroughService(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	svc, err := core.NewService(s, core.ServiceConfig{StrictGate: true})
	require.NoError(t, err)

	data := []byte("Title,Price,Brand,Category\n" +
		"Widget,\"1,299.00\",Acme,Home Goods\n" +
		"Gadget,5,acme,home goods\n")

	report, err := svc.ImportFile(ctx, core.ImportRequest{Filename: "products.csv", Data: data})
	require.NoError(t, err)
	assert.Equal(t, core.ImportSummary{Total: 2, Successful: 2, Failed: 0}, report.Summary)

	brands, err := s.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Acme", brands[0].Name)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "home-goods", cats[0].Slug)

	for _, res := range report.Results {
		require.NotNil(t, res.Product)
		assert.Equal(t, brands[0].ID, *res.Product.BrandID)
		assert.Equal(t, cats[0].ID, *res.Product.CategoryID)
	}
}
