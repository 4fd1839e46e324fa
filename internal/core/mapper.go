package core

// mapper.go maps raw header-keyed rows onto the canonical catalog fields.
//
// Each field has an ordered alias list. The first alias that exists as a
// header in the row supplies the value, even when that cell is blank; later
// aliases are never consulted or merged. Extra aliases can be loaded from a
// YAML file:
//
//	fields:
//	  title:
//	    aliases: [Name, Product Name]
//	  price:
//	    replace: true
//	    aliases: [price, Cost]

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultAliases is the built-in header alias table in priority order.
var DefaultAliases = map[Field][]string{
	FieldTitle:         {"title", "Title", "Item"},
	FieldPrice:         {"price", "Price", "Retail", "retail"},
	FieldOriginalPrice: {"original_price", "Original Price", "original price"},
	FieldDescription:   {"description", "Description", "Specifications", "Specification", "Model"},
	FieldCategory:      {"category", "Category"},
	FieldBrand:         {"brand", "Brand"},
}

// Mapper resolves semantic fields from raw rows. It is safe for concurrent
// use once built.
type Mapper struct {
	aliases map[Field][]string
}

// NewMapper returns a Mapper using the built-in alias table.
func NewMapper() *Mapper {
	m := &Mapper{aliases: make(map[Field][]string, len(DefaultAliases))}
	for f, list := range DefaultAliases {
		m.aliases[f] = slices.Clone(list)
	}
	return m
}

type aliasFile struct {
	Fields map[string]struct {
		Replace bool     `yaml:"replace"`
		Aliases []string `yaml:"aliases"`
	} `yaml:"fields"`
}

// LoadMapper builds a Mapper from the built-in table plus the YAML alias
// file at path. An empty path returns the built-in table.
func LoadMapper(path string) (*Mapper, error) {
	m := NewMapper()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	if err := m.apply(data); err != nil {
		return nil, fmt.Errorf("alias file %s: %w", path, err)
	}
	return m, nil
}

func (m *Mapper) apply(data []byte) error {
	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}

	for name, entry := range file.Fields {
		field := Field(name)
		if !slices.Contains(Fields, field) {
			return fmt.Errorf("unknown field %q", name)
		}

		var list []string
		if !entry.Replace {
			list = m.aliases[field]
		}
		for _, alias := range entry.Aliases {
			if alias == "" || slices.Contains(list, alias) {
				continue
			}
			list = append(list, alias)
		}
		if len(list) == 0 {
			return fmt.Errorf("field %q has no aliases", name)
		}
		m.aliases[field] = list
	}
	return nil
}

// Aliases returns a copy of the alias list for f in priority order.
func (m *Mapper) Aliases(f Field) []string {
	return slices.Clone(m.aliases[f])
}

// Lookup returns the value of the first alias of f present in row.
func (m *Mapper) Lookup(row RawRow, f Field) (string, bool) {
	for _, alias := range m.aliases[f] {
		if v, ok := row.Get(alias); ok {
			return v, true
		}
	}
	return "", false
}

// Normalize maps one raw row onto the catalog fields.
func (m *Mapper) Normalize(row RawRow) CanonicalRow {
	out := CanonicalRow{Row: row.Number}

	if v, ok := m.Lookup(row, FieldTitle); ok {
		out.Title = strings.TrimSpace(v)
	}
	if v, ok := m.Lookup(row, FieldPrice); ok {
		out.Price = NumberText(cleanAmount(v))
	}
	if v, ok := m.Lookup(row, FieldOriginalPrice); ok {
		if s := cleanAmount(v); s != "" {
			op := NumberText(s)
			out.OriginalPrice = &op
		}
	}
	if v, ok := m.Lookup(row, FieldDescription); ok {
		out.Description = optionalText(v)
	}
	if v, ok := m.Lookup(row, FieldCategory); ok {
		out.Category = optionalText(v)
	}
	if v, ok := m.Lookup(row, FieldBrand); ok {
		out.Brand = optionalText(v)
	}
	return out
}

// NormalizeAll maps rows in order.
func (m *Mapper) NormalizeAll(rows []RawRow) []CanonicalRow {
	out := make([]CanonicalRow, len(rows))
	for i, row := range rows {
		out[i] = m.Normalize(row)
	}
	return out
}

// cleanAmount strips thousands separators and surrounding whitespace.
func cleanAmount(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}
