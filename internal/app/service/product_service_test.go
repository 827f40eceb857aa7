package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProductServiceTest(t *testing.T) (ProductService, *storeFixture) {
	f := setupStoreFixture(t)
	return NewProductService(f.products, WithChangeNotifier(f.notifier)), f
}

func validInput(name string) ProductInput {
	return ProductInput{
		Name:        name,
		Description: "A useful thing",
		Price:       12.5,
		Stock:       4,
		Image:       "https://example.com/thing.jpg",
	}
}

func TestProductService_CreateProduct(t *testing.T) {
	productService, f := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := productService.CreateProduct(ctx, ProductInput{
		Name:        "  Desk Lamp  ",
		Description: " LED lamp ",
		Price:       39.99,
		Stock:       3,
	})
	require.NoError(t, err)
	assert.NotZero(t, product.ID)
	assert.Equal(t, "Desk Lamp", product.Name)
	assert.Equal(t, "LED lamp", product.Description)
	assert.Equal(t, 1, f.notifier.productCount())
}

func TestProductService_CreateProduct_Validation(t *testing.T) {
	productService, f := setupProductServiceTest(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input ProductInput
		field string
	}{
		{name: "Blank name", input: ProductInput{Name: "   ", Description: "x", Price: 1, Stock: 1}, field: "name"},
		{name: "Blank description", input: ProductInput{Name: "A", Description: "", Price: 1, Stock: 1}, field: "description"},
		{name: "Zero price", input: ProductInput{Name: "A", Description: "x", Price: 0, Stock: 1}, field: "price"},
		{name: "Negative price", input: ProductInput{Name: "A", Description: "x", Price: -3, Stock: 1}, field: "price"},
		{name: "Negative stock", input: ProductInput{Name: "A", Description: "x", Price: 1, Stock: -1}, field: "stock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := productService.CreateProduct(ctx, tt.input)
			require.ErrorIs(t, err, ErrInvalidProduct)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}

	products, err := productService.ListProducts(ctx, ProductListOptions{})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 0, f.notifier.productCount())
}

func TestProductService_DuplicateName(t *testing.T) {
	productService, _ := setupProductServiceTest(t)
	ctx := context.Background()

	first, err := productService.CreateProduct(ctx, validInput("Mug"))
	require.NoError(t, err)
	second, err := productService.CreateProduct(ctx, validInput("Plate"))
	require.NoError(t, err)

	_, err = productService.CreateProduct(ctx, validInput(" Mug "))
	assert.ErrorIs(t, err, ErrDuplicateProductName)

	_, err = productService.UpdateProduct(ctx, second.ID, validInput("Mug"))
	assert.ErrorIs(t, err, ErrDuplicateProductName)

	_, err = productService.UpdateProduct(ctx, first.ID, validInput("Mug"))
	assert.NoError(t, err, "a product may keep its own name")
}

func TestProductService_UpdateProduct_KeepsImageWhenEmpty(t *testing.T) {
	productService, _ := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := productService.CreateProduct(ctx, validInput("Mug"))
	require.NoError(t, err)

	input := validInput("Mug")
	input.Image = ""
	input.Price = 15
	updated, err := productService.UpdateProduct(ctx, product.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/thing.jpg", updated.Image)
	assert.Equal(t, 15.0, updated.Price)

	_, err = productService.UpdateProduct(ctx, 9999, validInput("Ghost"))
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_DeleteProduct(t *testing.T) {
	productService, _ := setupProductServiceTest(t)
	ctx := context.Background()

	product, err := productService.CreateProduct(ctx, validInput("Mug"))
	require.NoError(t, err)

	require.NoError(t, productService.DeleteProduct(ctx, product.ID))
	_, err = productService.GetProductByID(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, productService.DeleteProduct(ctx, product.ID), ErrProductNotFound)
}

func TestProductService_ListProducts(t *testing.T) {
	productService, _ := setupProductServiceTest(t)
	ctx := context.Background()

	for name, price := range map[string]float64{"Kettle": 30, "Toaster": 45, "Cup": 4} {
		input := validInput(name)
		input.Price = price
		_, err := productService.CreateProduct(ctx, input)
		require.NoError(t, err)
	}

	byName, err := productService.ListProducts(ctx, ProductListOptions{})
	require.NoError(t, err)
	require.Len(t, byName, 3)
	assert.Equal(t, "Cup", byName[0].Name)

	byPrice, err := productService.ListProducts(ctx, ProductListOptions{Sort: "price-high"})
	require.NoError(t, err)
	assert.Equal(t, "Toaster", byPrice[0].Name)

	searched, err := productService.ListProducts(ctx, ProductListOptions{Search: "ket"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, "Kettle", searched[0].Name)
}

func TestProductService_UpsertByName(t *testing.T) {
	productService, _ := setupProductServiceTest(t)
	ctx := context.Background()

	product, created, err := productService.UpsertByName(ctx, validInput("Mug"))
	require.NoError(t, err)
	assert.True(t, created)

	input := validInput("Mug")
	input.Stock = 40
	again, created, err := productService.UpsertByName(ctx, input)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, product.ID, again.ID)
	assert.Equal(t, 40, again.Stock)
}
