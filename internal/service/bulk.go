package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
)

type ClearInventoryResult struct {
	GhostedProducts    int   `json:"ghosted_products"`
	DeletedProducts    int64 `json:"deleted_products"`
	DeletedAdjustments int64 `json:"deleted_stock_adjustments"`
}

type ClearOrdersResult struct {
	DeletedOrderItems int64 `json:"deleted_order_items"`
	DeletedOrders     int64 `json:"deleted_orders"`
	DeletedGhosts     int64 `json:"deleted_ghosts"`
}

// BulkService sequences whole-table clears. Neither clear is atomic; a failure
// partway leaves the completed steps committed.
type BulkService struct {
	deps   Deps
	guard  *IntegrityGuard
	logger *slog.Logger
}

func NewBulkService(guard *IntegrityGuard, deps Deps) *BulkService {
	deps = deps.withDefaults()
	return &BulkService{
		deps:   deps,
		guard:  guard,
		logger: deps.Logger.With(slog.String("service", "bulk")),
	}
}

// ClearAllInventory ghosts every product an order still refers to, then
// deletes the whole ledger and every live product. Ghosts stay until their
// orders are cleared.
func (s *BulkService) ClearAllInventory(ctx context.Context) (ClearInventoryResult, error) {
	var result ClearInventoryResult

	err := saga.New("clear all inventory").
		Step("ghost referenced products", func(ctx context.Context) error {
			ids, err := s.deps.Repos.OrderItems.ListReferencedProductIDs(ctx)
			if err != nil {
				return fmt.Errorf("order item repository list referenced product ids: %w", err)
			}
			for _, id := range ids {
				product, err := s.deps.Repos.Products.GetProduct(ctx, id)
				if err != nil {
					return fmt.Errorf("product repository get product: %w", err)
				}
				if product.IsTombstoned() {
					continue
				}
				if _, err := s.guard.ghostProduct(ctx, product); err != nil {
					return err
				}
				result.GhostedProducts++
			}
			return nil
		}).
		Step("delete stock adjustments", func(ctx context.Context) (err error) {
			if result.DeletedAdjustments, err = s.deps.Repos.Adjustments.DeleteAllStockAdjustments(ctx); err != nil {
				return fmt.Errorf("stock adjustment repository delete all stock adjustments: %w", err)
			}
			return nil
		}).
		Step("delete live products", func(ctx context.Context) (err error) {
			if result.DeletedProducts, err = s.deps.Repos.Products.DeleteActiveProducts(ctx); err != nil {
				return fmt.Errorf("product repository delete active products: %w", err)
			}
			return nil
		}).
		Run(ctx)
	s.deps.invalidateProducts(ctx)
	if err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "inventory cleared",
		slog.Int("ghosted_products", result.GhostedProducts),
		slog.Int64("deleted_products", result.DeletedProducts),
		slog.Int64("deleted_stock_adjustments", result.DeletedAdjustments),
	)

	return result, nil
}

// ClearAllOrders deletes every order and line, then the ghosts that existed
// before the clear, which nothing refers to anymore.
func (s *BulkService) ClearAllOrders(ctx context.Context) (ClearOrdersResult, error) {
	var (
		result ClearOrdersResult
		ghosts []string
	)

	err := saga.New("clear all orders").
		Step("snapshot ghosts", func(ctx context.Context) (err error) {
			if ghosts, err = s.deps.Repos.Products.ListTombstonedProductIDs(ctx); err != nil {
				return fmt.Errorf("product repository list tombstoned product ids: %w", err)
			}
			return nil
		}).
		Step("delete order items", func(ctx context.Context) (err error) {
			if result.DeletedOrderItems, err = s.deps.Repos.OrderItems.DeleteAllOrderItems(ctx); err != nil {
				return fmt.Errorf("order item repository delete all order items: %w", err)
			}
			return nil
		}).
		Step("delete orders", func(ctx context.Context) (err error) {
			if result.DeletedOrders, err = s.deps.Repos.Orders.DeleteAllOrders(ctx); err != nil {
				return fmt.Errorf("order repository delete all orders: %w", err)
			}
			return nil
		}).
		Step("delete ghosts", func(ctx context.Context) (err error) {
			if len(ghosts) == 0 {
				return nil
			}
			if result.DeletedGhosts, err = s.deps.Repos.Products.DeleteProducts(ctx, ghosts); err != nil {
				return fmt.Errorf("product repository delete products: %w", err)
			}
			return nil
		}).
		Run(ctx)
	if err != nil {
		return result, err
	}

	if result.DeletedGhosts > 0 {
		s.deps.invalidateProducts(ctx)
	}

	s.logger.InfoContext(ctx, "orders cleared",
		slog.Int64("deleted_order_items", result.DeletedOrderItems),
		slog.Int64("deleted_orders", result.DeletedOrders),
		slog.Int64("deleted_ghosts", result.DeletedGhosts),
	)

	return result, nil
}
