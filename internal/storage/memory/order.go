package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
)

func (s *Store) CreateOrder(_ context.Context, order model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("create order: duplicate id %s", order.ID)
	}
	s.orders[order.ID] = order
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, apperr.NewOrderNotFound(id)
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, params repository.ListOrdersParams) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := []model.Order{}
	for _, o := range s.orders {
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		if params.Customer != nil && o.Customer != *params.Customer {
			continue
		}
		orders = append(orders, o)
	}
	slices.SortFunc(orders, func(a, b model.Order) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if params.Desc {
			return -c
		}
		return c
	})

	return limit(orders, params.Limit), nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id string, status model.OrderStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return apperr.NewOrderNotFound(id)
	}
	o.Status = status
	o.UpdatedAt = updatedAt
	s.orders[id] = o
	return nil
}

// DeleteOrder cascades to the order's items like the Postgres foreign key.
func (s *Store) DeleteOrder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return apperr.NewOrderNotFound(id)
	}
	delete(s.orders, id)
	for itemID, item := range s.orderItems {
		if item.OrderID == id {
			delete(s.orderItems, itemID)
		}
	}
	return nil
}

func (s *Store) DeleteAllOrders(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.orders))
	s.orders = make(map[string]model.Order)
	s.orderItems = make(map[string]model.OrderItem)
	return n, nil
}
