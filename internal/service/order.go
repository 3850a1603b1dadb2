package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/event"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
)

type CreateOrderItemParams struct {
	ProductID string `validate:"required"`
	Quantity  int    `validate:"gt=0"`
	// Price overrides the product's current selling price.
	Price *float64 `validate:"omitnil,gte=0"`
	// SerialIDs must hold exactly Quantity units for serialized products.
	SerialIDs []uuid.UUID
}

type CreateOrderParams struct {
	Customer string                  `validate:"required,max=255"`
	Items    []CreateOrderItemParams `validate:"required,min=1,dive"`
}

type ListOrdersParams struct {
	Status   *model.OrderStatus `validate:"omitnil,enum"`
	Customer *string
	Desc     bool
	Limit    int32 `validate:"gte=0"`
}

type UpdateOrderStatusParams struct {
	OrderID string            `validate:"required"`
	Status  model.OrderStatus `validate:"required,enum"`
}

// OrderService owns the order status machine and order-line creation.
type OrderService struct {
	deps    Deps
	ledger  *StockLedger
	serials *SerialTracker
	guard   *IntegrityGuard
	logger  *slog.Logger
}

func NewOrderService(ledger *StockLedger, serials *SerialTracker, guard *IntegrityGuard, deps Deps) *OrderService {
	deps = deps.withDefaults()
	return &OrderService{
		deps:    deps,
		ledger:  ledger,
		serials: serials,
		guard:   guard,
		logger:  deps.Logger.With(slog.String("service", "order")),
	}
}

// CreateOrder checks every line in turn, then writes the order, its lines,
// the stock decrements and the serial sales. A failure after the order row is
// written leaves the completed steps in place.
func (s *OrderService) CreateOrder(ctx context.Context, params CreateOrderParams) (model.OrderWithItems, error) {
	params.Customer = strings.TrimSpace(params.Customer)
	if err := s.deps.validate(params); err != nil {
		return model.OrderWithItems{}, err
	}

	products, err := s.checkItems(ctx, params.Items)
	if err != nil {
		return model.OrderWithItems{}, err
	}

	now := s.deps.Clock()
	ts := now.UnixMilli()
	order := model.OrderWithItems{
		Order: model.Order{
			ID:        fmt.Sprintf("ORD-%d-%03d", ts, rand.IntN(1000)),
			Customer:  params.Customer,
			Status:    model.OrderStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Items: make([]model.OrderItem, 0, len(params.Items)),
	}

	var serialIDs []uuid.UUID
	for i, p := range params.Items {
		price := ptr.ValueOr(p.Price, products[i].SellingPrice)
		item := model.OrderItem{
			ID:        fmt.Sprintf("ORI-%d-%03d", ts, i+1),
			OrderID:   order.ID,
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
			Price:     price,
		}
		order.Items = append(order.Items, item)
		order.TotalItems += item.Quantity
		order.TotalAmount += item.Subtotal()
		serialIDs = append(serialIDs, p.SerialIDs...)
	}

	err = saga.New("create order").
		Step("write order", func(ctx context.Context) error {
			if err := s.deps.Repos.Orders.CreateOrder(ctx, order.Order); err != nil {
				return fmt.Errorf("order repository create order: %w", err)
			}
			return nil
		}).
		Step("write order items", func(ctx context.Context) error {
			for _, item := range order.Items {
				if err := s.deps.Repos.OrderItems.CreateOrderItem(ctx, item); err != nil {
					return fmt.Errorf("order item repository create order item %s: %w", item.ID, err)
				}
			}
			return nil
		}).
		Step("decrement stock", func(ctx context.Context) error {
			for _, item := range order.Items {
				if _, err := s.ledger.adjust(ctx, stockChange{
					productID: item.ProductID,
					delta:     -item.Quantity,
					reason:    fmt.Sprintf("Order %s placed", order.ID),
					origin:    originOrderPlacement,
				}); err != nil {
					return fmt.Errorf("ledger adjust stock for %s: %w", item.ProductID, err)
				}
			}
			return nil
		}).
		Step("mark serial numbers sold", func(ctx context.Context) error {
			return s.serials.MarkSold(ctx, serialIDs, order.ID)
		}).
		Run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "order creation stopped partway",
			slog.String("order_id", order.ID),
			slog.Any("error", err),
		)
		return model.OrderWithItems{}, err
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.Int("total_items", order.TotalItems),
		slog.Float64("total_amount", order.TotalAmount),
	)

	s.deps.publish(ctx, event.TopicOrderStatusChanged, order.ID, event.OrderStatusChangedEvent{
		OrderID:   order.ID,
		Customer:  order.Customer,
		To:        string(order.Status),
		ChangedAt: now,
	})

	return order, nil
}

// checkItems verifies each line against the product as read now. Lines for
// the same product draw from one running balance.
func (s *OrderService) checkItems(ctx context.Context, items []CreateOrderItemParams) ([]model.Product, error) {
	products := make([]model.Product, 0, len(items))
	requested := make(map[string]int, len(items))
	serialSeen := make(map[uuid.UUID]struct{})

	for _, item := range items {
		product, err := s.deps.Repos.Products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product repository get product: %w", err)
		}
		if product.IsTombstoned() {
			return nil, apperr.ProductArchivedErr.WithMsg("product %s is archived", product.ID)
		}

		available := product.Stock - requested[product.ID]
		if available < item.Quantity {
			return nil, apperr.NewInsufficientStock(product.ID, available, item.Quantity)
		}
		requested[product.ID] += item.Quantity

		if err := s.checkSerials(ctx, product, item, serialSeen); err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	return products, nil
}

func (s *OrderService) checkSerials(ctx context.Context, product model.Product, item CreateOrderItemParams, seen map[uuid.UUID]struct{}) error {
	if !product.IsSerialized {
		if len(item.SerialIDs) > 0 {
			return apperr.NewValidation("product %s is not serialized but serial numbers were given", product.ID)
		}
		return nil
	}

	if len(item.SerialIDs) != item.Quantity {
		return apperr.NewValidation("product %s is serialized: %d serial numbers required, got %d",
			product.ID, item.Quantity, len(item.SerialIDs))
	}

	for _, id := range item.SerialIDs {
		if _, dup := seen[id]; dup {
			return apperr.NewValidation("serial number %s is listed more than once", id)
		}
		seen[id] = struct{}{}

		serial, err := s.deps.Repos.Serials.GetSerialNumber(ctx, id)
		if err != nil {
			return fmt.Errorf("serial number repository get serial number: %w", err)
		}
		if serial.ProductID != product.ID {
			return apperr.NewValidation("serial number %s does not belong to product %s", serial.SerialNumber, product.ID)
		}
		if serial.Status != model.SerialStatusAvailable {
			return apperr.SerialNotAvailableErr.WithMsg("serial number %s is %s", serial.SerialNumber, serial.Status)
		}
	}

	return nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (model.OrderWithItems, error) {
	order, err := s.deps.Repos.Orders.GetOrder(ctx, id)
	if err != nil {
		return model.OrderWithItems{}, fmt.Errorf("order repository get order: %w", err)
	}

	items, err := s.deps.Repos.OrderItems.ListOrderItems(ctx, id)
	if err != nil {
		return model.OrderWithItems{}, fmt.Errorf("order item repository list order items: %w", err)
	}

	return model.OrderWithItems{Order: order, Items: items}, nil
}

func (s *OrderService) ListOrders(ctx context.Context, params ListOrdersParams) ([]model.Order, error) {
	if err := s.deps.validate(params); err != nil {
		return nil, err
	}

	orders, err := s.deps.Repos.Orders.ListOrders(ctx, repository.ListOrdersParams{
		Status:   params.Status,
		Customer: params.Customer,
		Desc:     params.Desc,
		Limit:    params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("order repository list orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus moves the order along the status graph. Cancelling also
// restores stock for every line and releases the order's serial numbers.
func (s *OrderService) UpdateStatus(ctx context.Context, params UpdateOrderStatusParams) (model.Order, error) {
	if err := s.deps.validate(params); err != nil {
		return model.Order{}, err
	}

	order, err := s.deps.Repos.Orders.GetOrder(ctx, params.OrderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("order repository get order: %w", err)
	}

	if !model.CanTransition(order.Status, params.Status) {
		return model.Order{}, apperr.NewInvalidStatusTransition(order.Status, params.Status)
	}

	from := order.Status
	now := s.deps.Clock()

	steps := saga.New("update order status").
		Step("write status", func(ctx context.Context) error {
			if err := s.deps.Repos.Orders.UpdateOrderStatus(ctx, order.ID, params.Status, now); err != nil {
				return fmt.Errorf("order repository update order status: %w", err)
			}
			return nil
		})

	if params.Status == model.OrderStatusCancelled {
		var skipped map[string]struct{}
		steps.
			Step("restore stock", func(ctx context.Context) (err error) {
				skipped, err = s.restoreStock(ctx, order.ID)
				return err
			}).
			Step("release serial numbers", func(ctx context.Context) error {
				return s.releaseSerials(ctx, order.ID, skipped)
			})
	}

	if err := steps.Run(ctx); err != nil {
		return model.Order{}, err
	}

	order.Status = params.Status
	order.UpdatedAt = now

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(order.Status)),
	)

	s.deps.publish(ctx, event.TopicOrderStatusChanged, order.ID, event.OrderStatusChangedEvent{
		OrderID:   order.ID,
		Customer:  order.Customer,
		From:      string(from),
		To:        string(order.Status),
		ChangedAt: now,
	})

	return order, nil
}

// restoreStock adds every line's quantity back. Lines whose product is gone
// or archived are skipped and returned.
func (s *OrderService) restoreStock(ctx context.Context, orderID string) (map[string]struct{}, error) {
	items, err := s.deps.Repos.OrderItems.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("order item repository list order items: %w", err)
	}

	skipped := make(map[string]struct{})
	for _, item := range items {
		product, err := s.deps.Repos.Products.GetProduct(ctx, item.ProductID)
		if err != nil && !apperr.IsProductNotFound(err) {
			return nil, fmt.Errorf("product repository get product: %w", err)
		}
		if err != nil || product.IsTombstoned() {
			s.logger.WarnContext(ctx, "stock not restored for archived product",
				slog.String("order_id", orderID),
				slog.String("product_id", item.ProductID),
				slog.Int("quantity", item.Quantity),
			)
			skipped[item.ProductID] = struct{}{}
			continue
		}

		if _, err := s.ledger.adjust(ctx, stockChange{
			productID: item.ProductID,
			delta:     item.Quantity,
			reason:    fmt.Sprintf("Order %s cancelled", orderID),
			origin:    originOrderCancellation,
		}); err != nil {
			return nil, fmt.Errorf("ledger adjust stock for %s: %w", item.ProductID, err)
		}
	}

	return skipped, nil
}

// releaseSerials returns the order's sold units to available. Units of the
// products restoreStock skipped stay sold and linked to the order: an
// archived product has no stock, and an available unit would break
// stock == count(available) for it.
func (s *OrderService) releaseSerials(ctx context.Context, orderID string, skipped map[string]struct{}) error {
	sold := model.SerialStatusSold
	serials, err := s.deps.Repos.Serials.ListSerialNumbers(ctx, repository.ListSerialNumbersParams{
		OrderID: &orderID,
		Status:  &sold,
	})
	if err != nil {
		return fmt.Errorf("serial number repository list serial numbers: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(serials))
	for _, sn := range serials {
		if _, ok := skipped[sn.ProductID]; ok {
			continue
		}
		ids = append(ids, sn.ID)
	}

	return s.serials.MarkAvailable(ctx, ids)
}

// DeleteOrder removes the order and its lines, then drops ghosts that only
// this order kept alive. Stock is not touched.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if _, err := s.deps.Repos.Orders.GetOrder(ctx, id); err != nil {
		return fmt.Errorf("order repository get order: %w", err)
	}

	items, err := s.deps.Repos.OrderItems.ListOrderItems(ctx, id)
	if err != nil {
		return fmt.Errorf("order item repository list order items: %w", err)
	}

	productIDs := make([]string, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}

	var ghosts int
	if err := saga.New("delete order").
		Step("delete order items", func(ctx context.Context) error {
			if _, err := s.deps.Repos.OrderItems.DeleteOrderItems(ctx, id); err != nil {
				return fmt.Errorf("order item repository delete order items: %w", err)
			}
			return nil
		}).
		Step("delete order", func(ctx context.Context) error {
			if err := s.deps.Repos.Orders.DeleteOrder(ctx, id); err != nil {
				return fmt.Errorf("order repository delete order: %w", err)
			}
			return nil
		}).
		Step("clean up ghosts", func(ctx context.Context) (err error) {
			ghosts, err = s.guard.cleanupGhosts(ctx, productIDs)
			return err
		}).
		Run(ctx); err != nil {
		return err
	}

	if ghosts > 0 {
		s.deps.invalidateProducts(ctx)
	}

	s.logger.InfoContext(ctx, "order deleted",
		slog.String("order_id", id),
		slog.Int("order_items", len(items)),
		slog.Int("ghosts_deleted", ghosts),
	)

	return nil
}
