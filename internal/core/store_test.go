package core

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Store with failure injection for tests.
type memStore struct {
	mu         sync.Mutex
	brands     []Brand
	categories []Category
	products   []Product
	nextID     int

	brandCreateCalls    int
	categoryCreateCalls int

	failBrandCreate    error
	failCategoryCreate error
	failInsert         func(NewProduct) error
}

func newMemStore() *memStore {
	return &memStore{}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) ListBrands(ctx context.Context) ([]Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Brand(nil), m.brands...), nil
}

func (m *memStore) ListCategories(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Category(nil), m.categories...), nil
}

func (m *memStore) CreateBrands(ctx context.Context, names []string) ([]Brand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brandCreateCalls++
	if m.failBrandCreate != nil {
		return nil, m.failBrandCreate
	}
	created := make([]Brand, len(names))
	for i, name := range names {
		created[i] = Brand{ID: m.id("brand"), Name: name}
	}
	m.brands = append(m.brands, created...)
	return created, nil
}

func (m *memStore) CreateCategories(ctx context.Context, cats []NewCategory) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categoryCreateCalls++
	if m.failCategoryCreate != nil {
		return nil, m.failCategoryCreate
	}
	created := make([]Category, len(cats))
	for i, c := range cats {
		created[i] = Category{ID: m.id("cat"), Name: c.Name, Slug: c.Slug}
	}
	m.categories = append(m.categories, created...)
	return created, nil
}

func (m *memStore) InsertProduct(ctx context.Context, p NewProduct) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		if err := m.failInsert(p); err != nil {
			return Product{}, err
		}
	}
	price, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return Product{}, err
	}
	product := Product{
		ID:          m.id("prod"),
		Title:       p.Title,
		Description: p.Description,
		Price:       price,
		BrandID:     p.BrandID,
		CategoryID:  p.CategoryID,
		Category:    p.Category,
		CreatedAt:   time.Now().UTC(),
	}
	if p.OriginalPrice != nil {
		op, err := strconv.ParseFloat(*p.OriginalPrice, 64)
		if err != nil {
			return Product{}, err
		}
		product.OriginalPrice = &op
	}
	m.products = append(m.products, product)
	return product, nil
}

func ptr[T any](v T) *T {
	return &v
}

func numPtr(s string) *NumberText {
	n := NumberText(s)
	return &n
}
