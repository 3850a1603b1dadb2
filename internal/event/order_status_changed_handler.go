package event

import (
	"context"
	"log/slog"
	"time"
)

const TopicOrderStatusChanged = "order.status_changed"

type OrderStatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	Customer  string    `json:"customer"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

func (s *Service) handleOrderStatusChangedEvent(ctx context.Context, ev OrderStatusChangedEvent) error {
	s.logger.InfoContext(ctx, "handling order status changed event",
		slog.String("order_id", ev.OrderID),
		slog.String("from", ev.From),
		slog.String("to", ev.To),
	)
	return nil
}
