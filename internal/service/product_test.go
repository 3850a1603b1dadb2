package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("Should number products and record initial stock through the ledger", func(t *testing.T) {
		f := newFixture(t)

		first := f.createProduct(t, "SKU-1", 0)
		second := f.createProduct(t, "SKU-2", 12)

		assert.Equal(t, "PRD-001", first.ID)
		assert.Equal(t, "PRD-002", second.ID)
		assert.Equal(t, model.ProductStatusActive, second.Status)
		assert.Equal(t, 12, second.Stock)

		assert.Empty(t, f.adjustments(t, first.ID))
		rows := f.adjustments(t, second.ID)
		require.Len(t, rows, 1)
		assert.Equal(t, "Initial stock", rows[0].Reason)
		assert.Equal(t, 0, rows[0].PreviousQuantity)
	})

	t.Run("Should reject a duplicate sku", func(t *testing.T) {
		f := newFixture(t)
		f.createProduct(t, "SKU-1", 0)

		_, err := f.svc.Products.CreateProduct(ctx, service.CreateProductParams{Sku: "SKU-1", Name: "Other"})
		assert.True(t, zerror.IsCode(err, apperr.DuplicateSkuCode))
	})

	t.Run("Should reject invalid params", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name   string
			params service.CreateProductParams
		}{
			{name: "missing sku", params: service.CreateProductParams{Name: "A"}},
			{name: "missing name", params: service.CreateProductParams{Sku: "A"}},
			{name: "negative stock", params: service.CreateProductParams{Sku: "A", Name: "A", InitialStock: -1}},
			{name: "negative price", params: service.CreateProductParams{Sku: "A", Name: "A", SellingPrice: -1}},
			{name: "serialized with stock", params: service.CreateProductParams{Sku: "A", Name: "A", IsSerialized: true, InitialStock: 2}},
			{name: "serials for plain product", params: service.CreateProductParams{Sku: "A", Name: "A", Serials: []string{"X"}}},
			{name: "archive prefix", params: service.CreateProductParams{Sku: "DELETED-1", Name: "A"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Products.CreateProduct(ctx, tt.params)
				assert.True(t, zerror.IsCode(err, apperr.ValidationErrorCode), err)
			})
		}
		assert.Zero(t, f.store.Counts().ActiveProducts)
	})
}

func TestImportProducts(t *testing.T) {
	f := newFixture(t)
	f.createProduct(t, "SKU-1", 0)

	res := f.svc.Products.ImportProducts(context.Background(), []service.CreateProductParams{
		{Sku: "SKU-2", Name: "Two", InitialStock: 3},
		{Sku: "SKU-1", Name: "Duplicate"},
		{Sku: "", Name: "Invalid"},
		{Sku: "SKU-3", Name: "Three"},
	})

	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Rows, 4)
	assert.Equal(t, 1, res.Rows[0].Row)
	require.NotNil(t, res.Rows[0].Product)
	assert.Equal(t, 3, res.Rows[0].Product.Stock)
	assert.True(t, zerror.IsCode(res.Rows[1].Err, apperr.DuplicateSkuCode))
	assert.True(t, zerror.IsCode(res.Rows[2].Err, apperr.ValidationErrorCode))
	assert.NoError(t, res.Rows[3].Err)
	assert.Equal(t, 3, f.store.Counts().ActiveProducts)
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("Should exclude ghosts", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 5)
		f.createProduct(t, "SKU-B", 5)
		f.placeOrder(t, a.ID, 1)
		_, err := f.svc.Products.DeleteProduct(ctx, a.ID)
		require.NoError(t, err)

		products, err := f.svc.Products.ListProducts(ctx, service.ListProductsParams{})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "SKU-B", products[0].Sku)
	})

	t.Run("Should list low stock products lowest first", func(t *testing.T) {
		f := newFixture(t)
		f.createProduct(t, "SKU-A", 2)
		f.createProduct(t, "SKU-B", 50)
		f.createProduct(t, "SKU-C", 0)

		products, err := f.svc.Products.ListLowStockProducts(ctx)
		require.NoError(t, err)
		require.Len(t, products, 2)
		assert.Equal(t, "SKU-C", products[0].Sku)
		assert.Equal(t, "SKU-A", products[1].Sku)
	})

	t.Run("Should filter by category and name prefix", func(t *testing.T) {
		f := newFixture(t)
		f.createProduct(t, "SKU-A", 2)
		_, err := f.svc.Products.CreateProduct(ctx, service.CreateProductParams{Sku: "SKU-T", Name: "Tool", Category: "Tools"})
		require.NoError(t, err)

		products, err := f.svc.Products.ListProducts(ctx, service.ListProductsParams{Category: ptr.New("Tools")})
		require.NoError(t, err)
		require.Len(t, products, 1)

		products, err = f.svc.Products.ListProducts(ctx, service.ListProductsParams{NamePrefix: ptr.New("Prod")})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, "SKU-A", products[0].Sku)
	})

	t.Run("Should serve the unfiltered listing from cache until a mutation", func(t *testing.T) {
		cache := &mapCache{}
		f := newFixture(t, withCache(cache))
		p := f.createProduct(t, "SKU-A", 2)

		_, err := f.svc.Products.ListProducts(ctx, service.ListProductsParams{})
		require.NoError(t, err)
		_, err = f.svc.Products.ListProducts(ctx, service.ListProductsParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, cache.hits)

		invalidations := cache.invalidations
		_, err = f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: 3, Reason: "count"})
		require.NoError(t, err)
		assert.Greater(t, cache.invalidations, invalidations)

		products, err := f.svc.Products.ListProducts(ctx, service.ListProductsParams{})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, 5, products[0].Stock)
	})

	t.Run("Should reject an unknown sort column", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Products.ListProducts(ctx, service.ListProductsParams{OrderBy: repository.ProductOrderBy("price; drop")})
		assert.True(t, zerror.IsCode(err, apperr.ValidationErrorCode))
	})
}

func TestUpdateProductDetails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createProduct(t, "SKU-A", 7)

	got, err := f.svc.Products.UpdateProductDetails(ctx, service.UpdateProductDetailsParams{
		ID:           p.ID,
		Name:         "Renamed",
		Category:     "Tools",
		Location:     "B2",
		ReorderLevel: 4,
		CostPrice:    1,
		SellingPrice: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 7, got.Stock)

	stored, err := f.svc.Products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "B2", stored.Location)
	assert.Equal(t, 7, stored.Stock)
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delete an unreferenced product outright", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-A", 5)

		res, err := f.svc.Products.DeleteProduct(ctx, p.ID)
		require.NoError(t, err)
		assert.Nil(t, res.Ghost)

		counts := f.store.Counts()
		assert.Zero(t, counts.ActiveProducts)
		assert.Zero(t, counts.TombstonedProducts)
		assert.Zero(t, counts.StockAdjustments)
	})

	t.Run("Should replace a referenced product with one ghost", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-A-"+strings.Repeat("x", 40), 5)
		first := f.placeOrder(t, p.ID, 1)
		second := f.placeOrder(t, p.ID, 2)

		res, err := f.svc.Products.DeleteProduct(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Ghost)
		ghost := *res.Ghost

		assert.True(t, strings.HasPrefix(ghost.ID, "GHOST-"+p.ID+"-"))
		assert.True(t, strings.HasPrefix(ghost.Sku, "DELETED-"))
		assert.True(t, strings.HasSuffix(ghost.Sku, "-"+p.ID+"-"+p.Sku[:32]))
		assert.Equal(t, "[DELETED] "+p.Name, ghost.Name)
		assert.Equal(t, "Archive", ghost.Location)
		assert.Equal(t, model.ProductStatusTombstoned, ghost.Status)
		assert.Zero(t, ghost.Stock)
		assert.Zero(t, ghost.SellingPrice)
		assert.Zero(t, ghost.CostPrice)

		counts := f.store.Counts()
		assert.Equal(t, 1, counts.TombstonedProducts)
		assert.Zero(t, counts.ActiveProducts)

		for _, id := range []string{first.ID, second.ID} {
			order, err := f.svc.Orders.GetOrder(ctx, id)
			require.NoError(t, err)
			for _, item := range order.Items {
				assert.Equal(t, ghost.ID, item.ProductID)
			}
		}

		_, err = f.svc.Products.GetProduct(ctx, p.ID)
		assert.True(t, zerror.IsCode(err, apperr.ProductNotFoundCode))

		// ledger history follows the ghost
		assert.Len(t, f.adjustments(t, ghost.ID), 3)
	})

	t.Run("Should keep sold units with the ghost and drop available ones", func(t *testing.T) {
		f := newFixture(t)
		p := f.createSerializedProduct(t, "SER-1", "A", "B")
		serials := f.serials(t, p.ID)
		_, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items:    []service.CreateOrderItemParams{{ProductID: p.ID, Quantity: 1, SerialIDs: []uuid.UUID{serials[0].ID}}},
		})
		require.NoError(t, err)

		res, err := f.svc.Products.DeleteProduct(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Ghost)

		kept := f.serials(t, res.Ghost.ID)
		require.Len(t, kept, 1)
		assert.Equal(t, "A", kept[0].SerialNumber)
		assert.Equal(t, 1, f.store.Counts().SerialNumbers)
	})

	t.Run("Should refuse to delete a ghost that orders still refer to", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-A", 5)
		f.placeOrder(t, p.ID, 1)
		res, err := f.svc.Products.DeleteProduct(ctx, p.ID)
		require.NoError(t, err)

		_, err = f.svc.Products.DeleteProduct(ctx, res.Ghost.ID)
		assert.True(t, zerror.IsCode(err, apperr.ValidationErrorCode))
		assert.Equal(t, 1, f.store.Counts().TombstonedProducts)
	})

	t.Run("Should reject edits to a ghost", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-A", 5)
		f.placeOrder(t, p.ID, 1)
		res, err := f.svc.Products.DeleteProduct(ctx, p.ID)
		require.NoError(t, err)

		_, err = f.svc.Products.UpdateProductDetails(ctx, service.UpdateProductDetailsParams{ID: res.Ghost.ID, Name: "Back"})
		assert.True(t, zerror.IsCode(err, apperr.ProductArchivedCode))

		_, err = f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: res.Ghost.ID, Delta: 1, Reason: "x"})
		assert.True(t, zerror.IsCode(err, apperr.ProductArchivedCode))
	})
}
