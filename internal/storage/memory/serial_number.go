package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/ptr"
)

func (s *Store) CreateSerialNumbers(_ context.Context, serials []model.SerialNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ product, number string }
	seen := make(map[key]struct{}, len(s.serials)+len(serials))
	for _, sn := range s.serials {
		seen[key{sn.ProductID, sn.SerialNumber}] = struct{}{}
	}
	for _, sn := range serials {
		if _, ok := s.products[sn.ProductID]; !ok {
			return fmt.Errorf("create serial numbers: product %s does not exist", sn.ProductID)
		}
		k := key{sn.ProductID, sn.SerialNumber}
		if _, dup := seen[k]; dup {
			return apperr.DuplicateSerialErr.WithMsg("serial number %s already exists for product %s",
				sn.SerialNumber, sn.ProductID)
		}
		seen[k] = struct{}{}
	}

	for _, sn := range serials {
		sn.OrderID = nil
		sn.UpdatedAt = sn.CreatedAt
		s.serials[sn.ID.String()] = sn
	}
	return nil
}

func (s *Store) GetSerialNumber(_ context.Context, id uuid.UUID) (model.SerialNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn, ok := s.serials[id.String()]
	if !ok {
		return model.SerialNumber{}, apperr.SerialNotFoundErr.WithMsg("serial number %s not found", id)
	}
	return cloneSerial(sn), nil
}

func (s *Store) ListSerialNumbers(_ context.Context, params repository.ListSerialNumbersParams) ([]model.SerialNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	serials := []model.SerialNumber{}
	for _, sn := range s.serials {
		if params.ProductID != nil && sn.ProductID != *params.ProductID {
			continue
		}
		if params.Status != nil && sn.Status != *params.Status {
			continue
		}
		if params.OrderID != nil && (sn.OrderID == nil || *sn.OrderID != *params.OrderID) {
			continue
		}
		serials = append(serials, cloneSerial(sn))
	}
	slices.SortFunc(serials, func(a, b model.SerialNumber) int {
		return cmp.Compare(a.SerialNumber, b.SerialNumber)
	})
	return serials, nil
}

func (s *Store) CountAvailableSerialNumbers(_ context.Context, productID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, sn := range s.serials {
		if sn.ProductID == productID && sn.Status == model.SerialStatusAvailable {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkSerialNumbersSold(_ context.Context, ids []uuid.UUID, orderID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		sn, ok := s.serials[id.String()]
		if !ok || sn.Status != model.SerialStatusAvailable {
			continue
		}
		sn.Status = model.SerialStatusSold
		sn.OrderID = ptr.New(orderID)
		sn.UpdatedAt = at
		s.serials[id.String()] = sn
		n++
	}
	return n, nil
}

func (s *Store) MarkSerialNumbersAvailable(_ context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		sn, ok := s.serials[id.String()]
		if !ok {
			continue
		}
		sn.Status = model.SerialStatusAvailable
		sn.OrderID = nil
		sn.UpdatedAt = at
		s.serials[id.String()] = sn
		n++
	}
	return n, nil
}

func (s *Store) RepointSoldSerialNumbers(_ context.Context, fromProductID, toProductID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[toProductID]; !ok {
		return 0, fmt.Errorf("repoint sold serial numbers: product %s does not exist", toProductID)
	}

	var n int64
	for id, sn := range s.serials {
		if sn.ProductID == fromProductID && sn.Status == model.SerialStatusSold {
			sn.ProductID = toProductID
			s.serials[id] = sn
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteSerialNumber(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.serials[id.String()]; !ok {
		return apperr.SerialNotFoundErr.WithMsg("serial number %s not found", id)
	}
	delete(s.serials, id.String())
	return nil
}

func cloneSerial(sn model.SerialNumber) model.SerialNumber {
	if sn.OrderID != nil {
		sn.OrderID = ptr.New(*sn.OrderID)
	}
	return sn
}
