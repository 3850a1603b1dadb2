package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
)

const ghostSkuTailLen = 32

// IntegrityGuard keeps products that orders still point at resolvable after
// deletion by swapping them for tombstones.
type IntegrityGuard struct {
	deps   Deps
	logger *slog.Logger
}

func NewIntegrityGuard(deps Deps) *IntegrityGuard {
	deps = deps.withDefaults()
	return &IntegrityGuard{
		deps:   deps,
		logger: deps.Logger.With(slog.String("service", "integrity_guard")),
	}
}

// DeleteProductResult tells whether a tombstone replaced the deleted product.
type DeleteProductResult struct {
	ProductID string         `json:"product_id"`
	Ghost     *model.Product `json:"ghost,omitempty"`
}

// deleteProduct deletes outright when no order item refers to the product and
// ghosts it otherwise.
func (g *IntegrityGuard) deleteProduct(ctx context.Context, id string) (DeleteProductResult, error) {
	product, err := g.deps.Repos.Products.GetProduct(ctx, id)
	if err != nil {
		return DeleteProductResult{}, fmt.Errorf("product repository get product: %w", err)
	}

	refs, err := g.deps.Repos.OrderItems.CountOrderItemsByProduct(ctx, id)
	if err != nil {
		return DeleteProductResult{}, fmt.Errorf("order item repository count order items by product: %w", err)
	}

	// An unreferenced product goes with its ledger rows and serial numbers;
	// history is kept only where an order still needs the product.
	if refs == 0 {
		if err := g.deps.Repos.Products.DeleteProduct(ctx, id); err != nil {
			return DeleteProductResult{}, fmt.Errorf("product repository delete product: %w", err)
		}
		g.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
		return DeleteProductResult{ProductID: id}, nil
	}

	if product.IsTombstoned() {
		return DeleteProductResult{}, apperr.NewValidation(
			"archived product %s is still referenced by %d order items; delete its orders first", id, refs)
	}

	ghost, err := g.ghostProduct(ctx, product)
	if err != nil {
		return DeleteProductResult{}, err
	}

	return DeleteProductResult{ProductID: id, Ghost: &ghost}, nil
}

// ghostProduct writes a tombstone, moves every reference to it and only then
// deletes the original. Completed steps are not undone on failure.
func (g *IntegrityGuard) ghostProduct(ctx context.Context, product model.Product) (model.Product, error) {
	now := g.deps.Clock()
	ts := now.UnixMilli()

	ghost := model.Product{
		ID:        fmt.Sprintf("%s%s-%d", model.GhostIDPrefix, product.ID, ts),
		// product ids are unique, so two ghosts made in the same millisecond
		// never share a sku even when their sku prefixes match
		Sku:       fmt.Sprintf("%s%d-%s-%s", model.GhostSkuPrefix, ts, product.ID, truncate(product.Sku, ghostSkuTailLen)),
		Name:      model.GhostNamePrefix + product.Name,
		Category:  product.Category,
		Location:  model.GhostLocation,
		Status:    model.ProductStatusTombstoned,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var items, adjustments, serials int64
	err := saga.New("ghost product").
		Step("create ghost", func(ctx context.Context) error {
			if err := g.deps.Repos.Products.CreateProduct(ctx, ghost); err != nil {
				return fmt.Errorf("product repository create product: %w", err)
			}
			return nil
		}).
		Step("repoint order items", func(ctx context.Context) (err error) {
			if items, err = g.deps.Repos.OrderItems.RepointOrderItems(ctx, product.ID, ghost.ID); err != nil {
				return fmt.Errorf("order item repository repoint order items: %w", err)
			}
			return nil
		}).
		Step("repoint stock adjustments", func(ctx context.Context) (err error) {
			if adjustments, err = g.deps.Repos.Adjustments.RepointStockAdjustments(ctx, product.ID, ghost.ID); err != nil {
				return fmt.Errorf("stock adjustment repository repoint stock adjustments: %w", err)
			}
			return nil
		}).
		Step("repoint sold serial numbers", func(ctx context.Context) (err error) {
			if serials, err = g.deps.Repos.Serials.RepointSoldSerialNumbers(ctx, product.ID, ghost.ID); err != nil {
				return fmt.Errorf("serial number repository repoint sold serial numbers: %w", err)
			}
			return nil
		}).
		Step("delete original", func(ctx context.Context) error {
			if err := g.deps.Repos.Products.DeleteProduct(ctx, product.ID); err != nil {
				return fmt.Errorf("product repository delete product: %w", err)
			}
			return nil
		}).
		Run(ctx)
	if err != nil {
		return model.Product{}, err
	}

	g.logger.InfoContext(ctx, "product replaced by ghost",
		slog.String("product_id", product.ID),
		slog.String("ghost_id", ghost.ID),
		slog.Int64("order_items", items),
		slog.Int64("stock_adjustments", adjustments),
		slog.Int64("serial_numbers", serials),
	)

	return ghost, nil
}

// cleanupGhosts hard-deletes the given tombstones that no order item refers
// to anymore. Live products are ignored.
func (g *IntegrityGuard) cleanupGhosts(ctx context.Context, productIDs []string) (int, error) {
	var deleted int
	for _, id := range productIDs {
		product, err := g.deps.Repos.Products.GetProduct(ctx, id)
		if err != nil {
			if apperr.IsProductNotFound(err) {
				continue
			}
			return deleted, fmt.Errorf("product repository get product: %w", err)
		}
		if !product.IsTombstoned() {
			continue
		}

		refs, err := g.deps.Repos.OrderItems.CountOrderItemsByProduct(ctx, id)
		if err != nil {
			return deleted, fmt.Errorf("order item repository count order items by product: %w", err)
		}
		if refs > 0 {
			continue
		}

		if err := g.deps.Repos.Products.DeleteProduct(ctx, id); err != nil {
			return deleted, fmt.Errorf("product repository delete product: %w", err)
		}
		deleted++
		g.logger.InfoContext(ctx, "unreferenced ghost deleted", slog.String("ghost_id", id))
	}

	return deleted, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
