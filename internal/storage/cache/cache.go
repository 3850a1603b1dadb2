package cache

import (
	"context"

	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
)

// ProductListCache holds the last-fetched active product listing. Entries are
// dropped after every mutation and refetched whole on the next read.
type ProductListCache interface {
	GetProducts(ctx context.Context) ([]model.Product, bool, error)
	SetProducts(ctx context.Context, products []model.Product) error
	Invalidate(ctx context.Context) error
}

var _ ProductListCache = Noop{}

// Noop never holds anything.
type Noop struct{}

func (Noop) GetProducts(context.Context) ([]model.Product, bool, error) { return nil, false, nil }
func (Noop) SetProducts(context.Context, []model.Product) error       { return nil }
func (Noop) Invalidate(context.Context) error                         { return nil }
