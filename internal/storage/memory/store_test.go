package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/memory"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func seedProduct(t *testing.T, s *memory.Store, id, sku string, stock int) model.Product {
	t.Helper()
	p := model.Product{
		ID:        id,
		Sku:       sku,
		Name:      "Product " + id,
		Stock:     stock,
		Status:    model.ProductStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestStoreProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject duplicate sku", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 0)

		err := s.CreateProduct(ctx, model.Product{ID: "PRD-002", Sku: "SKU-1"})
		assert.True(t, zerror.IsCode(err, apperr.DuplicateSkuCode))
	})

	t.Run("Should compare and set stock", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 5)

		ok, err := s.UpdateProductStock(ctx, repository.UpdateProductStockParams{ID: "PRD-001", Stock: 7, ExpectedStock: ptr.New(4)})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.UpdateProductStock(ctx, repository.UpdateProductStockParams{ID: "PRD-001", Stock: 7, ExpectedStock: ptr.New(5)})
		require.NoError(t, err)
		assert.True(t, ok)

		p, err := s.GetProduct(ctx, "PRD-001")
		require.NoError(t, err)
		assert.Equal(t, 7, p.Stock)
	})

	t.Run("Should filter by status and low stock", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 0)
		seedProduct(t, s, "PRD-002", "SKU-2", 50)
		require.NoError(t, s.CreateProduct(ctx, model.Product{ID: "GHOST-PRD-003-1", Sku: "DELETED-1-SKU", Status: model.ProductStatusTombstoned}))

		active, err := s.ListProducts(ctx, repository.ListProductsParams{Status: ptr.New(model.ProductStatusActive)})
		require.NoError(t, err)
		assert.Len(t, active, 2)

		low, err := s.ListProducts(ctx, repository.ListProductsParams{
			Status:       ptr.New(model.ProductStatusActive),
			LowStockOnly: true,
		})
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, "PRD-001", low[0].ID)

		ids, err := s.ListTombstonedProductIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"GHOST-PRD-003-1"}, ids)
	})

	t.Run("Should refuse to delete a product referenced by an order item", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 5)
		require.NoError(t, s.CreateOrder(ctx, model.Order{ID: "ORD-1", Status: model.OrderStatusPending}))
		require.NoError(t, s.CreateOrderItem(ctx, model.OrderItem{ID: "ORI-1-001", OrderID: "ORD-1", ProductID: "PRD-001", Quantity: 1}))

		assert.Error(t, s.DeleteProduct(ctx, "PRD-001"))
		_, err := s.DeleteActiveProducts(ctx)
		assert.Error(t, err)
	})

	t.Run("Should cascade ledger and serial rows on delete", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 5)
		require.NoError(t, s.CreateStockAdjustment(ctx, model.StockAdjustment{ID: "ADJ-001", ProductID: "PRD-001", Quantity: 5}))
		require.NoError(t, s.CreateSerialNumbers(ctx, []model.SerialNumber{{ID: uuid.New(), ProductID: "PRD-001", SerialNumber: "SN1"}}))

		require.NoError(t, s.DeleteProduct(ctx, "PRD-001"))

		c := s.Counts()
		assert.Zero(t, c.StockAdjustments)
		assert.Zero(t, c.SerialNumbers)
	})
}

func TestStoreSerialNumbers(t *testing.T) {
	ctx := context.Background()

	t.Run("Should reject duplicate serial in the same batch", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 0)

		err := s.CreateSerialNumbers(ctx, []model.SerialNumber{
			{ID: uuid.New(), ProductID: "PRD-001", SerialNumber: "SN1", Status: model.SerialStatusAvailable},
			{ID: uuid.New(), ProductID: "PRD-001", SerialNumber: "SN1", Status: model.SerialStatusAvailable},
		})
		assert.True(t, zerror.IsCode(err, apperr.DuplicateSerialCode))
		assert.Zero(t, s.Counts().SerialNumbers)
	})

	t.Run("Should only mark available serials sold", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 0)
		a, b := uuid.New(), uuid.New()
		require.NoError(t, s.CreateSerialNumbers(ctx, []model.SerialNumber{
			{ID: a, ProductID: "PRD-001", SerialNumber: "SN1", Status: model.SerialStatusAvailable},
			{ID: b, ProductID: "PRD-001", SerialNumber: "SN2", Status: model.SerialStatusAvailable},
		}))

		n, err := s.MarkSerialNumbersSold(ctx, []uuid.UUID{a}, "ORD-1", now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = s.MarkSerialNumbersSold(ctx, []uuid.UUID{a, b}, "ORD-2", now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		sold, err := s.ListSerialNumbers(ctx, repository.ListSerialNumbersParams{OrderID: ptr.New("ORD-1")})
		require.NoError(t, err)
		require.Len(t, sold, 1)
		assert.Equal(t, a, sold[0].ID)

		_, err = s.MarkSerialNumbersAvailable(ctx, []uuid.UUID{a}, now)
		require.NoError(t, err)
		count, err := s.CountAvailableSerialNumbers(ctx, "PRD-001")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		got, err := s.GetSerialNumber(ctx, a)
		require.NoError(t, err)
		assert.Nil(t, got.OrderID)
	})
}

func TestStoreOrders(t *testing.T) {
	ctx := context.Background()

	t.Run("Should cascade items on order delete and list referenced products", func(t *testing.T) {
		s := memory.New()
		seedProduct(t, s, "PRD-001", "SKU-1", 5)
		seedProduct(t, s, "PRD-002", "SKU-2", 5)
		require.NoError(t, s.CreateOrder(ctx, model.Order{ID: "ORD-1"}))
		require.NoError(t, s.CreateOrderItem(ctx, model.OrderItem{ID: "ORI-1-001", OrderID: "ORD-1", ProductID: "PRD-002", Quantity: 1}))
		require.NoError(t, s.CreateOrderItem(ctx, model.OrderItem{ID: "ORI-1-002", OrderID: "ORD-1", ProductID: "PRD-001", Quantity: 1}))
		require.NoError(t, s.CreateOrderItem(ctx, model.OrderItem{ID: "ORI-1-003", OrderID: "ORD-1", ProductID: "PRD-001", Quantity: 2}))

		ids, err := s.ListReferencedProductIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"PRD-001", "PRD-002"}, ids)

		require.NoError(t, s.DeleteOrder(ctx, "ORD-1"))
		assert.Zero(t, s.Counts().OrderItems)
	})

	t.Run("Should return not found for unknown order", func(t *testing.T) {
		s := memory.New()

		_, err := s.GetOrder(ctx, "ORD-x")
		assert.True(t, zerror.IsCode(err, apperr.OrderNotFoundCode))
	})
}
