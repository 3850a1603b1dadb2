package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
)

type AddSerialsParams struct {
	ProductID string   `validate:"required"`
	Serials   []string `validate:"required,min=1,dive,required,max=128"`
}

type ListSerialsParams struct {
	ProductID string              `validate:"required"`
	Status    *model.SerialStatus `validate:"omitnil,enum"`
}

// SerialTracker keeps unit-level serial numbers of serialized products and
// reconciles aggregate stock to the count of available units.
type SerialTracker struct {
	deps   Deps
	ledger *StockLedger
	logger *slog.Logger
}

func NewSerialTracker(ledger *StockLedger, deps Deps) *SerialTracker {
	deps = deps.withDefaults()
	return &SerialTracker{
		deps:   deps,
		ledger: ledger,
		logger: deps.Logger.With(slog.String("service", "serial")),
	}
}

// AddSerials registers new available units and reconciles stock.
func (t *SerialTracker) AddSerials(ctx context.Context, params AddSerialsParams) ([]model.SerialNumber, error) {
	for i := range params.Serials {
		params.Serials[i] = strings.TrimSpace(params.Serials[i])
	}
	if err := t.deps.validate(params); err != nil {
		return nil, err
	}

	product, err := t.deps.Repos.Products.GetProduct(ctx, params.ProductID)
	if err != nil {
		return nil, fmt.Errorf("product repository get product: %w", err)
	}
	if product.IsTombstoned() {
		return nil, apperr.ProductArchivedErr.WithMsg("product %s is archived", product.ID)
	}
	if !product.IsSerialized {
		return nil, apperr.NewValidation("product %s is not serialized", product.ID)
	}

	seen := make(map[string]struct{}, len(params.Serials))
	now := t.deps.Clock()
	serials := make([]model.SerialNumber, 0, len(params.Serials))
	for _, number := range params.Serials {
		if _, dup := seen[number]; dup {
			return nil, apperr.DuplicateSerialErr.WithMsg("serial number %s is listed more than once", number)
		}
		seen[number] = struct{}{}

		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate serial number id: %w", err)
		}
		serials = append(serials, model.SerialNumber{
			ID:           id,
			ProductID:    product.ID,
			SerialNumber: number,
			Status:       model.SerialStatusAvailable,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := t.deps.Repos.Serials.CreateSerialNumbers(ctx, serials); err != nil {
		return nil, fmt.Errorf("serial number repository create serial numbers: %w", err)
	}

	if _, err := t.SyncStockToSerials(ctx, product.ID); err != nil {
		return nil, err
	}

	return serials, nil
}

func (t *SerialTracker) ListSerials(ctx context.Context, params ListSerialsParams) ([]model.SerialNumber, error) {
	if err := t.deps.validate(params); err != nil {
		return nil, err
	}

	serials, err := t.deps.Repos.Serials.ListSerialNumbers(ctx, repository.ListSerialNumbersParams{
		ProductID: &params.ProductID,
		Status:    params.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("serial number repository list serial numbers: %w", err)
	}

	return serials, nil
}

// DeleteSerial removes an available unit. Sold units are order history and
// are kept.
func (t *SerialTracker) DeleteSerial(ctx context.Context, id uuid.UUID) error {
	serial, err := t.deps.Repos.Serials.GetSerialNumber(ctx, id)
	if err != nil {
		return fmt.Errorf("serial number repository get serial number: %w", err)
	}
	if serial.Status != model.SerialStatusAvailable {
		return apperr.SerialNotAvailableErr.WithMsg("serial number %s is %s and cannot be deleted",
			serial.SerialNumber, serial.Status)
	}

	if err := t.deps.Repos.Serials.DeleteSerialNumber(ctx, id); err != nil {
		return fmt.Errorf("serial number repository delete serial number: %w", err)
	}

	if _, err := t.SyncStockToSerials(ctx, serial.ProductID); err != nil {
		return err
	}

	return nil
}

// SyncStockToSerials sets stock to the number of available units through the
// ledger. Nothing is written when they already agree.
func (t *SerialTracker) SyncStockToSerials(ctx context.Context, productID string) (model.Product, error) {
	product, err := t.deps.Repos.Products.GetProduct(ctx, productID)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}
	if !product.IsSerialized {
		return model.Product{}, apperr.NewValidation("product %s is not serialized", product.ID)
	}

	available, err := t.deps.Repos.Serials.CountAvailableSerialNumbers(ctx, product.ID)
	if err != nil {
		return model.Product{}, fmt.Errorf("serial number repository count available serial numbers: %w", err)
	}

	if available == product.Stock {
		return product, nil
	}

	return t.ledger.adjust(ctx, stockChange{
		productID: product.ID,
		delta:     available - product.Stock,
		reason:    fmt.Sprintf("Stock synced to serial numbers (%d available)", available),
		origin:    originSerialSync,
	})
}

// MarkSold links the units to an order. The batch only flips units that are
// still available; any shortfall is reported as SERIAL_NOT_AVAILABLE with the
// flipped units left sold.
func (t *SerialTracker) MarkSold(ctx context.Context, ids []uuid.UUID, orderID string) error {
	if len(ids) == 0 {
		return nil
	}

	n, err := t.deps.Repos.Serials.MarkSerialNumbersSold(ctx, ids, orderID, t.deps.Clock())
	if err != nil {
		return fmt.Errorf("serial number repository mark serial numbers sold: %w", err)
	}
	if int(n) != len(ids) {
		return apperr.SerialNotAvailableErr.WithMsg("only %d of %d serial numbers were available for order %s",
			n, len(ids), orderID)
	}

	return nil
}

// MarkAvailable returns units to stock and clears their order link.
func (t *SerialTracker) MarkAvailable(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := t.deps.Repos.Serials.MarkSerialNumbersAvailable(ctx, ids, t.deps.Clock()); err != nil {
		return fmt.Errorf("serial number repository mark serial numbers available: %w", err)
	}

	return nil
}
