package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/event"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/memory"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

// failingOrderItems rejects the nth order item write onwards.
type failingOrderItems struct {
	repository.OrderItemRepository
	failFrom int
	calls    int
}

func (r *failingOrderItems) CreateOrderItem(ctx context.Context, item model.OrderItem) error {
	r.calls++
	if r.calls >= r.failFrom {
		return errors.New("connection reset")
	}
	return r.OrderItemRepository.CreateOrderItem(ctx, item)
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Should write the order, its lines and decrement stock", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		b := f.createProduct(t, "SKU-B", 5)

		order, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: " Alice ",
			Items: []service.CreateOrderItemParams{
				{ProductID: a.ID, Quantity: 3},
				{ProductID: b.ID, Quantity: 2, Price: ptr.New(7.5)},
			},
		})
		require.NoError(t, err)

		assert.Regexp(t, regexp.MustCompile(`^ORD-\d+-\d{3}$`), order.ID)
		assert.Equal(t, "Alice", order.Customer)
		assert.Equal(t, model.OrderStatusPending, order.Status)
		assert.Equal(t, 5, order.TotalItems)
		assert.InDelta(t, 3*10+2*7.5, order.TotalAmount, 1e-9)
		require.Len(t, order.Items, 2)
		assert.Regexp(t, regexp.MustCompile(`^ORI-\d+-001$`), order.Items[0].ID)
		assert.Regexp(t, regexp.MustCompile(`^ORI-\d+-002$`), order.Items[1].ID)
		assert.InDelta(t, 10.0, order.Items[0].Price, 1e-9)

		assert.Equal(t, 7, f.stock(t, a.ID))
		assert.Equal(t, 3, f.stock(t, b.ID))
		assert.Equal(t, "Order "+order.ID+" placed", f.adjustments(t, a.ID)[0].Reason)

		got, err := f.svc.Orders.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.Items, got.Items)
		assert.Contains(t, f.store.OutboxTopics(), event.TopicOrderStatusChanged)
	})

	t.Run("Should keep the unit price when the product price changes", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)

		order, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items:    []service.CreateOrderItemParams{{ProductID: a.ID, Quantity: 1}},
		})
		require.NoError(t, err)

		_, err = f.svc.Products.UpdateProductDetails(ctx, service.UpdateProductDetailsParams{
			ID: a.ID, Name: a.Name, SellingPrice: 99,
		})
		require.NoError(t, err)

		got, err := f.svc.Orders.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.InDelta(t, 10.0, got.Items[0].Price, 1e-9)
	})

	t.Run("Should fail on insufficient stock without writing anything", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		b := f.createProduct(t, "SKU-B", 3)
		before := f.store.Counts()

		_, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items: []service.CreateOrderItemParams{
				{ProductID: a.ID, Quantity: 1},
				{ProductID: b.ID, Quantity: 5},
			},
		})
		require.True(t, zerror.IsCode(err, apperr.InsufficientStockCode))
		assert.Contains(t, err.Error(), "available 3, requested 5")
		assert.Contains(t, err.Error(), b.ID)

		after := f.store.Counts()
		assert.Zero(t, after.Orders)
		assert.Zero(t, after.OrderItems)
		assert.Equal(t, before.StockAdjustments, after.StockAdjustments)
		assert.Equal(t, 10, f.stock(t, a.ID))
		assert.Equal(t, 3, f.stock(t, b.ID))
	})

	t.Run("Should draw repeated lines from one balance", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 4)

		_, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items: []service.CreateOrderItemParams{
				{ProductID: a.ID, Quantity: 3},
				{ProductID: a.ID, Quantity: 3},
			},
		})
		require.True(t, zerror.IsCode(err, apperr.InsufficientStockCode))
		assert.Contains(t, err.Error(), "available 1, requested 3")
		assert.Zero(t, f.store.Counts().Orders)
	})

	t.Run("Should reject invalid params", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 4)

		tests := []struct {
			name   string
			params service.CreateOrderParams
		}{
			{name: "no customer", params: service.CreateOrderParams{Items: []service.CreateOrderItemParams{{ProductID: a.ID, Quantity: 1}}}},
			{name: "no items", params: service.CreateOrderParams{Customer: "Alice"}},
			{name: "zero quantity", params: service.CreateOrderParams{Customer: "Alice", Items: []service.CreateOrderItemParams{{ProductID: a.ID}}}},
			{name: "negative quantity", params: service.CreateOrderParams{Customer: "Alice", Items: []service.CreateOrderItemParams{{ProductID: a.ID, Quantity: -1}}}},
			{name: "negative price", params: service.CreateOrderParams{Customer: "Alice", Items: []service.CreateOrderItemParams{{ProductID: a.ID, Quantity: 1, Price: ptr.New(-1.0)}}}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Orders.CreateOrder(ctx, tt.params)
				assert.True(t, zerror.IsCode(err, apperr.ValidationErrorCode))
			})
		}
		assert.Zero(t, f.store.Counts().Orders)
	})

	t.Run("Should sell the given units of a serialized product", func(t *testing.T) {
		f := newFixture(t)
		p := f.createSerializedProduct(t, "SER-1", "A", "B", "C")
		serials := f.serials(t, p.ID)

		order, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items: []service.CreateOrderItemParams{{
				ProductID: p.ID,
				Quantity:  2,
				SerialIDs: []uuid.UUID{serials[0].ID, serials[2].ID},
			}},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, f.stock(t, p.ID))
		assert.Equal(t, f.availableSerials(t, p.ID), f.stock(t, p.ID))

		sold, err := f.store.ListSerialNumbers(ctx, repository.ListSerialNumbersParams{OrderID: &order.ID})
		require.NoError(t, err)
		require.Len(t, sold, 2)
		for _, sn := range sold {
			assert.Equal(t, model.SerialStatusSold, sn.Status)
		}
	})

	t.Run("Should check units of a serialized product", func(t *testing.T) {
		f := newFixture(t)
		p := f.createSerializedProduct(t, "SER-1", "A", "B")
		other := f.createSerializedProduct(t, "SER-2", "X")
		serials := f.serials(t, p.ID)
		otherSerials := f.serials(t, other.ID)

		tests := []struct {
			name string
			ids  []uuid.UUID
			qty  int
			code string
		}{
			{name: "count mismatch", ids: []uuid.UUID{serials[0].ID}, qty: 2, code: apperr.ValidationErrorCode},
			{name: "repeated unit", ids: []uuid.UUID{serials[0].ID, serials[0].ID}, qty: 2, code: apperr.ValidationErrorCode},
			{name: "unit of another product", ids: []uuid.UUID{otherSerials[0].ID}, qty: 1, code: apperr.ValidationErrorCode},
			{name: "unknown unit", ids: []uuid.UUID{uuid.New()}, qty: 1, code: apperr.SerialNotFoundCode},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
					Customer: "Alice",
					Items:    []service.CreateOrderItemParams{{ProductID: p.ID, Quantity: tt.qty, SerialIDs: tt.ids}},
				})
				assert.True(t, zerror.IsCode(err, tt.code), err)
			})
		}
		assert.Equal(t, 2, f.stock(t, p.ID))
		assert.Zero(t, f.store.Counts().Orders)
	})

	t.Run("Should reject a unit that is already sold", func(t *testing.T) {
		f := newFixture(t)
		p := f.createSerializedProduct(t, "SER-1", "A", "B")
		serials := f.serials(t, p.ID)
		item := service.CreateOrderItemParams{ProductID: p.ID, Quantity: 1, SerialIDs: []uuid.UUID{serials[0].ID}}

		_, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{Customer: "Alice", Items: []service.CreateOrderItemParams{item}})
		require.NoError(t, err)

		_, err = f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{Customer: "Bob", Items: []service.CreateOrderItemParams{item}})
		assert.True(t, zerror.IsCode(err, apperr.SerialNotAvailableCode))
	})

	t.Run("Should leave completed steps in place when a later step fails", func(t *testing.T) {
		f := newFixture(t, withRepos(func(s *memory.Store) service.Repositories {
			repos := storeRepos(s)
			repos.OrderItems = &failingOrderItems{OrderItemRepository: s, failFrom: 2}
			return repos
		}))
		a := f.createProduct(t, "SKU-A", 10)
		b := f.createProduct(t, "SKU-B", 10)

		_, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items: []service.CreateOrderItemParams{
				{ProductID: a.ID, Quantity: 1},
				{ProductID: b.ID, Quantity: 1},
			},
		})
		var stepErr *saga.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "write order items", stepErr.Step)
		assert.Equal(t, []string{"write order"}, stepErr.Completed)
		assert.Empty(t, stepErr.Compensated)

		counts := f.store.Counts()
		assert.Equal(t, 1, counts.Orders)
		assert.Equal(t, 1, counts.OrderItems)
		assert.Equal(t, 10, f.stock(t, a.ID))
	})

	t.Run("Should reject an archived product", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		f.placeOrder(t, a.ID, 1)
		res, err := f.svc.Products.DeleteProduct(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Ghost)

		_, err = f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items:    []service.CreateOrderItemParams{{ProductID: res.Ghost.ID, Quantity: 1}},
		})
		assert.True(t, zerror.IsCode(err, apperr.ProductArchivedCode))
	})
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Should follow only the status graph", func(t *testing.T) {
		paths := map[model.OrderStatus][]model.OrderStatus{
			model.OrderStatusPending:    {},
			model.OrderStatusProcessing: {model.OrderStatusProcessing},
			model.OrderStatusShipped:    {model.OrderStatusProcessing, model.OrderStatusShipped},
			model.OrderStatusDelivered:  {model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered},
			model.OrderStatusCancelled:  {model.OrderStatusCancelled},
		}
		all := []model.OrderStatus{
			model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusShipped,
			model.OrderStatusDelivered, model.OrderStatusCancelled,
		}

		for from, path := range paths {
			for _, to := range all {
				t.Run(string(from)+" to "+string(to), func(t *testing.T) {
					f := newFixture(t)
					a := f.createProduct(t, "SKU-A", 10)
					order := f.placeOrder(t, a.ID, 1)
					for _, step := range path {
						_, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: step})
						require.NoError(t, err)
					}

					got, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: to})
					stored, getErr := f.svc.Orders.GetOrder(ctx, order.ID)
					require.NoError(t, getErr)

					if model.CanTransition(from, to) {
						require.NoError(t, err)
						assert.Equal(t, to, got.Status)
						assert.Equal(t, to, stored.Status)
						return
					}
					assert.True(t, zerror.IsCode(err, apperr.InvalidStatusTransitionCode))
					assert.Contains(t, err.Error(), string(from))
					assert.Equal(t, from, stored.Status)
				})
			}
		}
	})

	t.Run("Should name the allowed statuses", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		order := f.placeOrder(t, a.ID, 1)

		_, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: model.OrderStatusDelivered})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[processing, cancelled]")
	})

	t.Run("Should reject an unknown status", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		order := f.placeOrder(t, a.ID, 1)

		_, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: "lost"})
		assert.True(t, zerror.IsCode(err, apperr.ValidationErrorCode))
	})

	t.Run("Should report an unknown order as not found", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: "ORD-1", Status: model.OrderStatusProcessing})
		assert.True(t, zerror.IsCode(err, apperr.OrderNotFoundCode))
	})

	t.Run("Should restore stock and release units on cancel", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		b := f.createProduct(t, "SKU-B", 10)
		s := f.createSerializedProduct(t, "SER-1", "X", "Y")
		serials := f.serials(t, s.ID)

		order, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items: []service.CreateOrderItemParams{
				{ProductID: a.ID, Quantity: 3},
				{ProductID: b.ID, Quantity: 2},
				{ProductID: s.ID, Quantity: 1, SerialIDs: []uuid.UUID{serials[0].ID}},
			},
		})
		require.NoError(t, err)
		require.Equal(t, 7, f.stock(t, a.ID))
		require.Equal(t, 8, f.stock(t, b.ID))

		_, err = f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: model.OrderStatusProcessing})
		require.NoError(t, err)
		_, err = f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: model.OrderStatusCancelled})
		require.NoError(t, err)

		assert.Equal(t, 10, f.stock(t, a.ID))
		assert.Equal(t, 10, f.stock(t, b.ID))
		assert.Equal(t, 2, f.stock(t, s.ID))
		assert.Equal(t, 2, f.availableSerials(t, s.ID))

		got, err := f.store.GetSerialNumber(ctx, serials[0].ID)
		require.NoError(t, err)
		assert.Equal(t, model.SerialStatusAvailable, got.Status)
		assert.Nil(t, got.OrderID)

		assert.Equal(t, "Order "+order.ID+" cancelled", f.adjustments(t, a.ID)[0].Reason)
	})

	t.Run("Should not touch stock on other transitions", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		order := f.placeOrder(t, a.ID, 4)
		rows := len(f.adjustments(t, a.ID))

		for _, next := range []model.OrderStatus{model.OrderStatusProcessing, model.OrderStatusShipped, model.OrderStatusDelivered} {
			_, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: next})
			require.NoError(t, err)
		}

		assert.Equal(t, 6, f.stock(t, a.ID))
		assert.Len(t, f.adjustments(t, a.ID), rows)
	})

	t.Run("Should skip archived products when cancelling", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		b := f.createProduct(t, "SKU-B", 10)
		order, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items: []service.CreateOrderItemParams{
				{ProductID: a.ID, Quantity: 3},
				{ProductID: b.ID, Quantity: 2},
			},
		})
		require.NoError(t, err)

		res, err := f.svc.Products.DeleteProduct(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Ghost)

		_, err = f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: model.OrderStatusCancelled})
		require.NoError(t, err)

		assert.Equal(t, 10, f.stock(t, b.ID))
		assert.Equal(t, 0, f.stock(t, res.Ghost.ID))
	})

	t.Run("Should keep serials of an archived product sold when cancelling", func(t *testing.T) {
		f := newFixture(t)
		p := f.createSerializedProduct(t, "SER-1", "X", "Y")
		serials := f.serials(t, p.ID)
		order, err := f.svc.Orders.CreateOrder(ctx, service.CreateOrderParams{
			Customer: "Alice",
			Items:    []service.CreateOrderItemParams{{ProductID: p.ID, Quantity: 1, SerialIDs: []uuid.UUID{serials[0].ID}}},
		})
		require.NoError(t, err)

		res, err := f.svc.Products.DeleteProduct(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Ghost)

		_, err = f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: order.ID, Status: model.OrderStatusCancelled})
		require.NoError(t, err)

		// the ghost holds no stock, so it keeps no available units either
		ghostSerials := f.serials(t, res.Ghost.ID)
		require.Len(t, ghostSerials, 1)
		assert.Equal(t, model.SerialStatusSold, ghostSerials[0].Status)
		require.NotNil(t, ghostSerials[0].OrderID)
		assert.Equal(t, order.ID, *ghostSerials[0].OrderID)
		assert.Equal(t, 0, f.stock(t, res.Ghost.ID))
	})
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.createProduct(t, "SKU-A", 10)
	first := f.placeOrder(t, a.ID, 1)
	second := f.placeOrder(t, a.ID, 1)
	_, err := f.svc.Orders.UpdateStatus(ctx, service.UpdateOrderStatusParams{OrderID: second.ID, Status: model.OrderStatusCancelled})
	require.NoError(t, err)

	t.Run("Should list newest first", func(t *testing.T) {
		orders, err := f.svc.Orders.ListOrders(ctx, service.ListOrdersParams{Desc: true})
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, second.ID, orders[0].ID)
		assert.Equal(t, first.ID, orders[1].ID)
	})

	t.Run("Should filter by status", func(t *testing.T) {
		orders, err := f.svc.Orders.ListOrders(ctx, service.ListOrdersParams{Status: ptr.New(model.OrderStatusPending)})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, first.ID, orders[0].ID)
	})
}

func TestDeleteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("Should delete the order and its lines without touching stock", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		order := f.placeOrder(t, a.ID, 2)

		require.NoError(t, f.svc.Orders.DeleteOrder(ctx, order.ID))

		counts := f.store.Counts()
		assert.Zero(t, counts.Orders)
		assert.Zero(t, counts.OrderItems)
		assert.Equal(t, 8, f.stock(t, a.ID))

		_, err := f.svc.Orders.GetOrder(ctx, order.ID)
		assert.True(t, zerror.IsCode(err, apperr.OrderNotFoundCode))
	})

	t.Run("Should drop ghosts only once no order refers to them", func(t *testing.T) {
		f := newFixture(t)
		a := f.createProduct(t, "SKU-A", 10)
		first := f.placeOrder(t, a.ID, 1)
		second := f.placeOrder(t, a.ID, 1)

		res, err := f.svc.Products.DeleteProduct(ctx, a.ID)
		require.NoError(t, err)
		require.NotNil(t, res.Ghost)

		require.NoError(t, f.svc.Orders.DeleteOrder(ctx, first.ID))
		_, err = f.store.GetProduct(ctx, res.Ghost.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.Orders.DeleteOrder(ctx, second.ID))
		_, err = f.store.GetProduct(ctx, res.Ghost.ID)
		assert.True(t, zerror.IsCode(err, apperr.ProductNotFoundCode))
		assert.Zero(t, f.store.Counts().TombstonedProducts)
	})

	t.Run("Should report an unknown order as not found", func(t *testing.T) {
		f := newFixture(t)

		err := f.svc.Orders.DeleteOrder(ctx, "ORD-1")
		assert.True(t, zerror.IsCode(err, apperr.OrderNotFoundCode))
	})
}

func (f *fixture) placeOrder(t *testing.T, productID string, qty int) model.OrderWithItems {
	t.Helper()
	order, err := f.svc.Orders.CreateOrder(context.Background(), service.CreateOrderParams{
		Customer: "Alice",
		Items:    []service.CreateOrderItemParams{{ProductID: productID, Quantity: qty}},
	})
	require.NoError(t, err)
	return order
}
