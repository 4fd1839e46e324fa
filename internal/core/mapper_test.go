package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(number int, values map[string]string) RawRow {
	return RawRow{Number: number, Values: values}
}

func TestMapper_Normalize(t *testing.T) {
	m := NewMapper()

	tests := []struct {
		name string
		row  RawRow
		want CanonicalRow
	}{
		{
			name: "lowercase headers",
			row:  raw(2, map[string]string{"title": " Lamp ", "price": "1,299.00", "brand": "Acme"}),
			want: CanonicalRow{Row: 2, Title: "Lamp", Price: "1299.00", Brand: ptr("Acme")},
		},
		{
			name: "fallback aliases",
			row:  raw(3, map[string]string{"Item": "Desk", "Retail": "80", "Specifications": "Oak top", "Category": "Office"}),
			want: CanonicalRow{Row: 3, Title: "Desk", Price: "80", Description: ptr("Oak top"), Category: ptr("Office")},
		},
		{
			name: "first present alias wins even when blank",
			row:  raw(4, map[string]string{"title": "", "Item": "Chair", "price": "5"}),
			want: CanonicalRow{Row: 4, Title: "", Price: "5"},
		},
		{
			name: "original price with separators",
			row:  raw(5, map[string]string{"title": "Sofa", "price": "900", "Original Price": " 1,100 "}),
			want: CanonicalRow{Row: 5, Title: "Sofa", Price: "900", OriginalPrice: numPtr("1100")},
		},
		{
			name: "blank optional fields are absent",
			row:  raw(6, map[string]string{"title": "Rug", "price": "30", "brand": "  ", "original_price": ""}),
			want: CanonicalRow{Row: 6, Title: "Rug", Price: "30"},
		},
		{
			name: "no matching headers",
			row:  raw(7, map[string]string{"Name": "Mystery"}),
			want: CanonicalRow{Row: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Normalize(tt.row))
		})
	}
}

func TestMapper_DescriptionPriority(t *testing.T) {
	m := NewMapper()
	row := raw(2, map[string]string{"Model": "X1", "Specification": "Steel"})

	got := m.Normalize(row)
	require.NotNil(t, got.Description)
	assert.Equal(t, "Steel", *got.Description)
}

func TestLoadMapper(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path uses defaults", func(t *testing.T) {
		m, err := LoadMapper("")
		require.NoError(t, err)
		assert.Equal(t, DefaultAliases[FieldTitle], m.Aliases(FieldTitle))
	})

	t.Run("appends and replaces aliases", func(t *testing.T) {
		path := filepath.Join(dir, "aliases.yaml")
		content := `fields:
  title:
    aliases: [Name, Item]
  price:
    replace: true
    aliases: [Cost]
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		m, err := LoadMapper(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"title", "Title", "Item", "Name"}, m.Aliases(FieldTitle))
		assert.Equal(t, []string{"Cost"}, m.Aliases(FieldPrice))

		got := m.Normalize(raw(2, map[string]string{"Name": "Vase", "Cost": "12", "price": "99"}))
		assert.Equal(t, "Vase", got.Title)
		assert.Equal(t, NumberText("12"), got.Price)
	})

	t.Run("unknown field", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("fields:\n  colour:\n    aliases: [Color]\n"), 0o600))

		_, err := LoadMapper(path)
		assert.ErrorContains(t, err, `unknown field "colour"`)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMapper(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("defaults are not mutated", func(t *testing.T) {
		assert.Equal(t, []string{"price", "Price", "Retail", "retail"}, DefaultAliases[FieldPrice])
	})
}
