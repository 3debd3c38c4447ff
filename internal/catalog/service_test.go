package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gameportal/internal/catalog"
	"github.com/Tyrowin/gameportal/internal/storage/sqlite"
)

func newService(t *testing.T) *catalog.Service {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return catalog.NewService(store)
}

func validProduct() catalog.Product {
	return catalog.Product{
		Name:        "Hades",
		Description: "Fight your way out of the underworld.",
		Price:       24.99,
		ImageURL:    "https://example.com/hades.png",
		Category:    "acción",
		Platform:    "Nintendo Switch",
		Rating:      4.8,
	}
}

func TestFilterNormalize(t *testing.T) {
	f := catalog.Filter{}.Normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 12, f.Limit)
	assert.Zero(t, f.Offset())

	f = catalog.Filter{Page: 3, Limit: 500}.Normalize()
	assert.Equal(t, catalog.MaxLimit, f.Limit)
	assert.Equal(t, 200, f.Offset())
}

func TestCreateAssignsIdentityAndTimestamps(t *testing.T) {
	svc := newService(t)

	p, err := svc.Create(context.Background(), validProduct())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestCreateRejectsInvalidProducts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*catalog.Product)
	}{
		{"missing name", func(p *catalog.Product) { p.Name = "   " }},
		{"unknown category", func(p *catalog.Product) { p.Category = "puzzle" }},
		{"unknown platform", func(p *catalog.Product) { p.Platform = "Dreamcast" }},
		{"negative price", func(p *catalog.Product) { p.Price = -1 }},
		{"rating above five", func(p *catalog.Product) { p.Rating = 5.5 }},
		{"missing image", func(p *catalog.Product) { p.ImageURL = "" }},
	}

	svc := newService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)
			_, err := svc.Create(context.Background(), p)
			assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
		})
	}
}

func TestUpdateAppliesPatchAndRevalidates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, validProduct())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, catalog.ProductPatch{Price: lo.ToPtr(9.99), Featured: lo.ToPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, 9.99, updated.Price)
	assert.True(t, updated.Featured)
	assert.Equal(t, p.Name, updated.Name)

	_, err = svc.Update(ctx, p.ID, catalog.ProductPatch{Rating: lo.ToPtr(7.0)})
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)

	_, err = svc.Update(ctx, "missing", catalog.ProductPatch{})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, validProduct())
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), catalog.ErrNotFound)
}

func TestListPagination(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	for range 5 {
		_, err := svc.Create(ctx, validProduct())
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, catalog.Filter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Len(t, page.Products, 2)

	empty, err := svc.List(ctx, catalog.Filter{Category: "terror"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Products)
	assert.Zero(t, empty.TotalPages)
}

func TestSeedSamplesOnlyWhenEmpty(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	n, err := svc.SeedSamples(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(catalog.SampleProducts()), n)

	n, err = svc.SeedSamples(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	page, err := svc.List(ctx, catalog.Filter{Search: "zelda"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.True(t, page.Products[0].Featured)
}
