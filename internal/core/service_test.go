package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalog/internal/tabular"
)

func newTestService(t *testing.T, store *memStore, cfg ServiceConfig) *Service {
	t.Helper()
	svc, err := NewService(store, cfg)
	require.NoError(t, err)
	return svc
}

const mixedCSV = "Item,Retail,Brand,Category\n" +
	"Lamp,\"1,200\",Acme,Lighting\n" +
	",10,Acme,Lighting\n" +
	"Desk,80,acme,Office\n"

func TestService_ImportFile_GateRejects(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, ServiceConfig{StrictGate: true})

	_, err := svc.ImportFile(context.Background(), ImportRequest{Filename: "items.csv", Data: []byte(mixedCSV)})

	var gate *GateError
	require.ErrorAs(t, err, &gate)
	require.Len(t, gate.Errors, 1)
	assert.Equal(t, 3, gate.Errors[0].Row)
	assert.Equal(t, FieldTitle, gate.Errors[0].Field)
	assert.Empty(t, store.products, "nothing is written when the gate rejects")
	assert.Zero(t, store.brandCreateCalls)
}

func TestService_ImportFile_AllowPartial(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, ServiceConfig{StrictGate: true})

	report, err := svc.ImportFile(context.Background(), ImportRequest{
		Filename:     "items.csv",
		Data:         []byte(mixedCSV),
		AllowPartial: ptr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, ImportSummary{Total: 3, Successful: 2, Failed: 1}, report.Summary)
	assert.NotEmpty(t, report.ImportID)
	assert.Equal(t, []int{2, 3, 4}, []int{report.Results[0].Row, report.Results[1].Row, report.Results[2].Row})
	assert.Equal(t, 1200.0, report.Results[0].Product.Price)

	assert.Len(t, store.brands, 1, "Acme and acme share one brand")
	assert.Len(t, store.categories, 2)
	assert.Equal(t, 1, store.brandCreateCalls)
}

func TestService_ImportFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		req     ImportRequest
		cfg     ServiceConfig
		wantErr error
	}{
		{
			name:    "header only",
			req:     ImportRequest{Filename: "a.csv", Data: []byte("title,price\n")},
			wantErr: ErrNoRows,
		},
		{
			name:    "unsupported format",
			req:     ImportRequest{Filename: "a.xls", Data: []byte("x")},
			wantErr: tabular.ErrUnsupportedFormat,
		},
		{
			name:    "too large",
			req:     ImportRequest{Filename: "a.csv", Data: []byte("title,price\nA,1\n")},
			cfg:     ServiceConfig{MaxFileSize: 4},
			wantErr: ErrFileTooLarge,
		},
		{
			name:    "empty",
			req:     ImportRequest{Filename: "a.csv"},
			wantErr: tabular.ErrEmptyFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, newMemStore(), tt.cfg)
			_, err := svc.ImportFile(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_ImportFile_TaxonomyAbort(t *testing.T) {
	store := newMemStore()
	store.failBrandCreate = errors.New("insert brands: deadlock detected")
	svc := newTestService(t, store, ServiceConfig{TaxonomyFailure: TaxonomyAbort})

	_, err := svc.ImportFile(context.Background(), ImportRequest{
		Filename: "items.csv",
		Data:     []byte("title,price,brand\nLamp,5,Acme\nDesk,6,\n"),
	})
	assert.True(t, IsTaxonomyCreationError(err))
	assert.Empty(t, store.products, "no product is written after a taxonomy failure")
	assert.Equal(t, "TAX001", MapError(err).Code)
}

func TestService_Commit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, ServiceConfig{StrictGate: true})

	var rows []CanonicalRow
	payload := `[
		{"title": "Lamp", "price": 19.5, "brand": "Acme"},
		{"title": "", "price": "10"},
		{"title": "Desk", "price": "80", "original_price": 100}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &rows))

	report, err := svc.Commit(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, ImportSummary{Total: 3, Successful: 2, Failed: 1}, report.Summary)
	assert.Equal(t, 2, report.Results[0].Row)
	assert.Equal(t, 3, report.Results[1].Row)
	assert.Equal(t, "Title is required", report.Results[1].Error)
	assert.Equal(t, 100.0, *report.Results[2].Product.OriginalPrice)
}

func TestService_Commit_TrimsOptionalText(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, ServiceConfig{})

	report, err := svc.Commit(context.Background(), []CanonicalRow{
		{Title: "Lamp", Price: "20", Description: ptr("  Warm light  "), Category: ptr("  Lighting ")},
		{Title: "Desk", Price: "80", Description: ptr("   "), Category: ptr("")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, report.Summary.Successful)
	require.Len(t, store.products, 2)

	lamp := store.products[0]
	require.NotNil(t, lamp.Description)
	require.NotNil(t, lamp.Category)
	assert.Equal(t, "Warm light", *lamp.Description)
	assert.Equal(t, "Lighting", *lamp.Category)

	desk := store.products[1]
	assert.Nil(t, desk.Description, "blank description is stored as NULL")
	assert.Nil(t, desk.Category)
}

func TestService_Commit_Empty(t *testing.T) {
	svc := newTestService(t, newMemStore(), ServiceConfig{})
	_, err := svc.Commit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestService_Commit_IgnoresCallerCancellation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(t, store, ServiceConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	store.failInsert = func(p NewProduct) error {
		cancel()
		return nil
	}

	report, err := svc.Commit(ctx, []CanonicalRow{
		{Title: "a", Price: "1"},
		{Title: "b", Price: "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Summary.Successful)
}

func TestService_Preview(t *testing.T) {
	svc := newTestService(t, newMemStore(), ServiceConfig{})

	preview, err := svc.Preview(context.Background(), "items.csv", []byte(mixedCSV), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Item", "Retail", "Brand", "Category"}, preview.Headers)
	assert.Len(t, preview.Rows, 3)
	assert.False(t, preview.Valid())
	assert.Equal(t, NumberText("1200"), preview.Rows[0].Price)
}

func TestService_ListSheets_Delimited(t *testing.T) {
	svc := newTestService(t, newMemStore(), ServiceConfig{})
	sheets, err := svc.ListSheets(context.Background(), "a.csv", []byte("title\n"))
	require.NoError(t, err)
	assert.Empty(t, sheets)
}
