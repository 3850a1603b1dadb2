package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
)

func (s *Store) CreateOrderItem(_ context.Context, item model.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[item.OrderID]; !ok {
		return fmt.Errorf("create order item: order %s does not exist", item.OrderID)
	}
	if _, ok := s.products[item.ProductID]; !ok {
		return fmt.Errorf("create order item: product %s does not exist", item.ProductID)
	}
	if _, exists := s.orderItems[item.ID]; exists {
		return fmt.Errorf("create order item: duplicate id %s", item.ID)
	}
	s.orderItems[item.ID] = item
	return nil
}

func (s *Store) ListOrderItems(_ context.Context, orderID string) ([]model.OrderItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []model.OrderItem{}
	for _, item := range s.orderItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b model.OrderItem) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

func (s *Store) CountOrderItemsByProduct(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, item := range s.orderItems {
		if item.ProductID == productID {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListReferencedProductIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[string]struct{}{}
	ids := []string{}
	for _, item := range s.orderItems {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) RepointOrderItems(_ context.Context, fromProductID, toProductID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[toProductID]; !ok {
		return 0, fmt.Errorf("repoint order items: product %s does not exist", toProductID)
	}

	var n int64
	for id, item := range s.orderItems {
		if item.ProductID == fromProductID {
			item.ProductID = toProductID
			s.orderItems[id] = item
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteOrderItems(_ context.Context, orderID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, item := range s.orderItems {
		if item.OrderID == orderID {
			delete(s.orderItems, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllOrderItems(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.orderItems))
	s.orderItems = make(map[string]model.OrderItem)
	return n, nil
}
