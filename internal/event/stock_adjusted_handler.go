package event

import (
	"context"
	"log/slog"
	"time"
)

const TopicStockAdjusted = "stock.adjusted"

type StockAdjustedEvent struct {
	AdjustmentID     string    `json:"adjustment_id"`
	ProductID        string    `json:"product_id"`
	Sku              string    `json:"sku"`
	AdjustmentType   string    `json:"adjustment_type"`
	Quantity         int       `json:"quantity"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	ReorderLevel     int       `json:"reorder_level"`
	Reason           string    `json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsLowStock reports whether the adjustment left the product at or below its
// reorder level.
func (ev StockAdjustedEvent) IsLowStock() bool {
	return ev.NewQuantity <= ev.ReorderLevel
}

func (s *Service) handleStockAdjustedEvent(ctx context.Context, ev StockAdjustedEvent) error {
	s.logger.InfoContext(ctx, "handling stock adjusted event",
		slog.String("product_id", ev.ProductID),
		slog.String("adjustment_id", ev.AdjustmentID),
		slog.Int("previous_quantity", ev.PreviousQuantity),
		slog.Int("new_quantity", ev.NewQuantity),
	)

	if ev.IsLowStock() && ev.PreviousQuantity > ev.ReorderLevel {
		s.logger.WarnContext(ctx, "product reached reorder level",
			slog.String("product_id", ev.ProductID),
			slog.String("sku", ev.Sku),
			slog.Int("stock", ev.NewQuantity),
			slog.Int("reorder_level", ev.ReorderLevel),
		)
	}

	return nil
}
