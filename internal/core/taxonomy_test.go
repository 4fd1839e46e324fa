package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Nike", "nike", true},
		{" Nike ", "NIKE", true},
		{"Straße", "STRASSE", true},
		{"Nike", "Nikes", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.same, NormalizeKey(tt.a) == NormalizeKey(tt.b))
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Home & Garden", "home-garden"},
		{"  Kids' Toys!! ", "kids-toys"},
		{"Electronics", "electronics"},
		{"4K TVs", "4k-tvs"},
		{"Café Décor", "caf-d-cor"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestParseTaxonomyFailurePolicy(t *testing.T) {
	p, err := ParseTaxonomyFailurePolicy("ISOLATE")
	require.NoError(t, err)
	assert.Equal(t, TaxonomyIsolate, p)

	p, err = ParseTaxonomyFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, TaxonomyAbort, p)

	_, err = ParseTaxonomyFailurePolicy("retry")
	assert.Error(t, err)
}

func TestTaxonomyResolver_Resolve(t *testing.T) {
	store := newMemStore()
	store.brands = []Brand{{ID: "brand-existing", Name: "Acme"}}
	store.categories = []Category{{ID: "cat-existing", Name: "Lighting", Slug: "lighting"}}

	rows := []CanonicalRow{
		{Row: 2, Title: "a", Price: "1", Brand: ptr("acme"), Category: ptr("Home & Garden")},
		{Row: 3, Title: "b", Price: "1", Brand: ptr("Nova"), Category: ptr("home & garden")},
		{Row: 4, Title: "c", Price: "1", Brand: ptr(" NOVA "), Category: ptr("LIGHTING")},
		{Row: 5, Title: "d", Price: "1"},
	}

	index, err := NewTaxonomyResolver(store, TaxonomyAbort).Resolve(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 1, store.brandCreateCalls)
	assert.Equal(t, 1, store.categoryCreateCalls)
	require.Len(t, index.CreatedBrands, 1)
	assert.Equal(t, "Nova", index.CreatedBrands[0].Name)
	require.Len(t, index.CreatedCategories, 1)
	assert.Equal(t, "Home & Garden", index.CreatedCategories[0].Name)
	assert.Equal(t, "home-garden", index.CreatedCategories[0].Slug)

	id, err := index.BrandID(ptr("ACME"))
	require.NoError(t, err)
	assert.Equal(t, "brand-existing", *id)

	id, err = index.BrandID(ptr("nova"))
	require.NoError(t, err)
	assert.Equal(t, index.CreatedBrands[0].ID, *id)

	id, err = index.CategoryID(ptr("lighting"))
	require.NoError(t, err)
	assert.Equal(t, "cat-existing", *id)

	id, err = index.BrandID(nil)
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestTaxonomyResolver_NothingMissing(t *testing.T) {
	store := newMemStore()
	store.brands = []Brand{{ID: "b1", Name: "Acme"}}

	_, err := NewTaxonomyResolver(store, TaxonomyAbort).Resolve(context.Background(), []CanonicalRow{
		{Row: 2, Title: "a", Price: "1", Brand: ptr("acme")},
	})
	require.NoError(t, err)
	assert.Zero(t, store.brandCreateCalls)
	assert.Zero(t, store.categoryCreateCalls)
}

func TestTaxonomyResolver_AbortPolicy(t *testing.T) {
	store := newMemStore()
	store.failCategoryCreate = errors.New("insert categories: connection reset")

	rows := []CanonicalRow{{Row: 2, Title: "a", Price: "1", Category: ptr("Toys")}}
	_, err := NewTaxonomyResolver(store, TaxonomyAbort).Resolve(context.Background(), rows)

	var cerr *TaxonomyCreationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "category", cerr.Kind)
	assert.Equal(t, []string{"Toys"}, cerr.Names)
	assert.Contains(t, err.Error(), "failed to create categories")
}

func TestTaxonomyResolver_IsolatePolicy(t *testing.T) {
	store := newMemStore()
	store.failBrandCreate = errors.New("boom")

	rows := []CanonicalRow{
		{Row: 2, Title: "a", Price: "1", Brand: ptr("Nova"), Category: ptr("Toys")},
		{Row: 3, Title: "b", Price: "1", Category: ptr("Toys")},
	}
	index, err := NewTaxonomyResolver(store, TaxonomyIsolate).Resolve(context.Background(), rows)
	require.NoError(t, err)

	_, err = index.BrandID(ptr("nova"))
	assert.True(t, IsTaxonomyCreationError(err))

	id, err := index.CategoryID(ptr("toys"))
	require.NoError(t, err)
	assert.NotNil(t, id)
}
