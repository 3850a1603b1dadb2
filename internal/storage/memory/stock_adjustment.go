package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
)

func (s *Store) NextAdjustmentSeq(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustmentSeq++
	return s.adjustmentSeq, nil
}

func (s *Store) CreateStockAdjustment(_ context.Context, adjustment model.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[adjustment.ProductID]; !ok {
		return fmt.Errorf("create stock adjustment: product %s does not exist", adjustment.ProductID)
	}
	if _, exists := s.adjustments[adjustment.ID]; exists {
		return fmt.Errorf("create stock adjustment: duplicate id %s", adjustment.ID)
	}
	s.adjustments[adjustment.ID] = adjustment
	return nil
}

func (s *Store) ListStockAdjustments(_ context.Context, params repository.ListStockAdjustmentsParams) ([]model.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adjustments := []model.StockAdjustment{}
	for _, a := range s.adjustments {
		if a.ProductID == params.ProductID {
			adjustments = append(adjustments, a)
		}
	}
	// Newest first; ids share a zero-padded sequence so they order ties.
	slices.SortFunc(adjustments, func(a, b model.StockAdjustment) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return limit(adjustments, params.Limit), nil
}

func (s *Store) RepointStockAdjustments(_ context.Context, fromProductID, toProductID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[toProductID]; !ok {
		return 0, fmt.Errorf("repoint stock adjustments: product %s does not exist", toProductID)
	}

	var n int64
	for id, a := range s.adjustments {
		if a.ProductID == fromProductID {
			a.ProductID = toProductID
			s.adjustments[id] = a
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteAllStockAdjustments(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.adjustments))
	s.adjustments = make(map[string]model.StockAdjustment)
	return n, nil
}
