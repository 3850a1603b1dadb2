// Package memory provides an in-memory implementation of every repository
// used for tests and ephemeral environments. Each method is atomic on its
// own; nothing spans calls, matching the Postgres adapters.
package memory

import (
	"context"
	"sync"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
)

// Compile-time contract assertions.
var (
	_ repository.ProductRepository         = (*Store)(nil)
	_ repository.StockAdjustmentRepository = (*Store)(nil)
	_ repository.SerialNumberRepository    = (*Store)(nil)
	_ repository.OrderRepository           = (*Store)(nil)
	_ repository.OrderItemRepository       = (*Store)(nil)
	_ repository.OutboxMsgRepository       = (*Store)(nil)
)

type Store struct {
	mu sync.RWMutex
	// txMu serializes WithTx callers, standing in for the row locks a relay
	// batch takes in Postgres.
	txMu sync.Mutex

	productSeq    int64
	adjustmentSeq int64

	products    map[string]model.Product
	adjustments map[string]model.StockAdjustment
	serials     map[string]model.SerialNumber
	orders      map[string]model.Order
	orderItems  map[string]model.OrderItem
	outbox      []outboxMsg
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products:    make(map[string]model.Product),
		adjustments: make(map[string]model.StockAdjustment),
		serials:     make(map[string]model.SerialNumber),
		orders:      make(map[string]model.Order),
		orderItems:  make(map[string]model.OrderItem),
	}
}

// Counts is a row count per table.
type Counts struct {
	ActiveProducts     int
	TombstonedProducts int
	StockAdjustments   int
	SerialNumbers      int
	Orders             int
	OrderItems         int
	OutboxMsgs         int
}

// Counts returns the number of rows per table.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{
		StockAdjustments: len(s.adjustments),
		SerialNumbers:    len(s.serials),
		Orders:           len(s.orders),
		OrderItems:       len(s.orderItems),
		OutboxMsgs:       len(s.outbox),
	}
	for _, p := range s.products {
		if p.Status == model.ProductStatusTombstoned {
			c.TombstonedProducts++
		} else {
			c.ActiveProducts++
		}
	}
	return c
}

// IsHealthy always succeeds; the store lives in process.
func (s *Store) IsHealthy(context.Context) (bool, error) {
	return true, nil
}
