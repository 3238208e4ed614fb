package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductUseCase_Create(t *testing.T) {
	env := newTestEnv(t)
	uc := NewProductUseCase(env.products, nil, 0)

	t.Run("valid product", func(t *testing.T) {
		product, err := uc.Create(context.Background(), ProductInput{
			Name:  "Coffee",
			Price: decimal.RequireFromString("12.90"),
			Stock: 7,
			Image: &ProductImage{Data: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png"},
		})

		require.NoError(t, err)
		assert.NotEmpty(t, product.ID)
		assert.NotEmpty(t, product.Rev)

		image, err := uc.Image(context.Background(), product.ID)
		require.NoError(t, err)
		assert.Equal(t, "image/png", image.ContentType)
	})

	invalid := []struct {
		name string
		in   ProductInput
	}{
		{"missing name", ProductInput{Name: " ", Price: decimal.NewFromInt(1)}},
		{"negative price", ProductInput{Name: "X", Price: decimal.NewFromInt(-1)}},
		{"negative stock", ProductInput{Name: "X", Price: decimal.NewFromInt(1), Stock: -1}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestProductUseCase_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("partial update keeps other fields", func(t *testing.T) {
		env := newTestEnv(t)
		uc := NewProductUseCase(env.products, nil, 0)
		product := env.seedProduct(t, "Coffee", "10.00", 5)
		price := decimal.RequireFromString("11.50")

		updated, err := uc.Update(ctx, product.ID, ProductUpdate{Price: &price})

		require.NoError(t, err)
		assert.Equal(t, "Coffee", updated.Name)
		assert.Equal(t, 5, updated.Stock)
		assert.True(t, updated.Price.Equal(price))
		assert.NotEqual(t, product.Rev, updated.Rev)
	})

	t.Run("stale revision conflicts", func(t *testing.T) {
		env := newTestEnv(t)
		uc := NewProductUseCase(env.products, nil, 0)
		product := env.seedProduct(t, "Coffee", "10.00", 5)
		stock := 9
		_, err := uc.Update(ctx, product.ID, ProductUpdate{Stock: &stock})
		require.NoError(t, err)

		name := "Espresso"
		_, err = uc.Update(ctx, product.ID, ProductUpdate{Rev: product.Rev, Name: &name})

		assert.ErrorIs(t, err, ErrConflict)
		current, err := env.products.Get(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, "Coffee", current.Name)
	})

	t.Run("negative stock is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		uc := NewProductUseCase(env.products, nil, 0)
		product := env.seedProduct(t, "Coffee", "10.00", 5)
		stock := -3

		_, err := uc.Update(ctx, product.ID, ProductUpdate{Stock: &stock})

		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 5, env.stockOf(t, product.ID))
	})

	t.Run("unknown product", func(t *testing.T) {
		env := newTestEnv(t)
		uc := NewProductUseCase(env.products, nil, 0)
		name := "x"

		_, err := uc.Update(ctx, "missing", ProductUpdate{Name: &name})

		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestProductUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	uc := NewProductUseCase(env.products, nil, 0)

	p1 := env.seedProduct(t, "Coffee", "10.00", 5)
	p2 := env.seedProduct(t, "Tea", "3.00", 5)

	assert.ErrorIs(t, uc.Delete(ctx, p1.ID, "1-stale"), ErrConflict)
	require.NoError(t, uc.Delete(ctx, p1.ID, p1.Rev))
	require.NoError(t, uc.Delete(ctx, p2.ID, ""))
	assert.ErrorIs(t, uc.Delete(ctx, p2.ID, ""), ErrProductNotFound)

	products, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestProductUseCase_ImageMissing(t *testing.T) {
	env := newTestEnv(t)
	uc := NewProductUseCase(env.products, nil, 0)
	product := env.seedProduct(t, "Coffee", "10.00", 5)

	_, err := uc.Image(context.Background(), product.ID)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompareAndSwapStock(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	product := env.seedProduct(t, "Coffee", "10.00", 5)
	stale := *product

	require.NoError(t, env.products.CompareAndSwapStock(ctx, product, 4))
	assert.Equal(t, 4, product.Stock)

	assert.ErrorIs(t, env.products.CompareAndSwapStock(ctx, &stale, 3), ErrConflict)
	assert.Equal(t, 5, stale.Stock)
	assert.ErrorIs(t, env.products.CompareAndSwapStock(ctx, product, -1), ErrNegativeStock)
	assert.Equal(t, 4, env.stockOf(t, product.ID))
}

func TestCustomerUseCase(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	uc := NewCustomerUseCase(env.customers)

	_, err := uc.Create(ctx, CustomerInput{Name: "  "})
	assert.ErrorIs(t, err, ErrValidation)

	ana, err := uc.Create(ctx, CustomerInput{Name: "Ana", Email: "ana@example.com", Phone: "555-0101"})
	require.NoError(t, err)
	_, err = uc.Create(ctx, CustomerInput{Name: "Bia"})
	require.NoError(t, err)

	got, err := uc.Get(ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "555-0101", got.Phone)

	all, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ana", all[0].Name)
	assert.Equal(t, "Bia", all[1].Name)

	_, err = uc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
