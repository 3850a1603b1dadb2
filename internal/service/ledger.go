package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/event"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
)

// origin tells the ledger which operation a stock change comes from. Only
// serial-aware origins may move the stock of a serialized product.
type origin uint8

const (
	originManual origin = iota
	originInitialStock
	originOrderPlacement
	originOrderCancellation
	originSerialSync
)

func (o origin) String() string {
	return []string{"manual", "initial_stock", "order_placement", "order_cancellation", "serial_sync"}[o]
}

// errStockChanged signals a lost compare-and-set; the ledger retries on it.
var errStockChanged = errors.New("stock changed since read")

const stepWriteStock = "write stock"

type AdjustStockParams struct {
	ProductID string `validate:"required"`
	// Delta is the signed change to apply.
	Delta  int    `validate:"ne=0"`
	Reason string `validate:"required"`
}

type ListStockAdjustmentsParams struct {
	ProductID string `validate:"required"`
	Limit     int32  `validate:"gte=0"`
}

// StockLedger is the single place product stock is written. Every accepted
// change appends exactly one StockAdjustment row.
type StockLedger struct {
	cfg    config.Ledger
	deps   Deps
	logger *slog.Logger
}

func NewStockLedger(cfg config.Ledger, deps Deps) *StockLedger {
	deps = deps.withDefaults()
	return &StockLedger{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(slog.String("service", "ledger")),
	}
}

// AdjustStock applies a manual stock change. Serialized products reject it in
// both directions.
func (l *StockLedger) AdjustStock(ctx context.Context, params AdjustStockParams) (model.Product, error) {
	params.Reason = strings.TrimSpace(params.Reason)
	if err := l.deps.validate(params); err != nil {
		return model.Product{}, err
	}

	return l.adjust(ctx, stockChange{
		productID: params.ProductID,
		delta:     params.Delta,
		reason:    params.Reason,
		origin:    originManual,
	})
}

// ListStockAdjustments returns a product's ledger rows, newest first.
func (l *StockLedger) ListStockAdjustments(ctx context.Context, params ListStockAdjustmentsParams) ([]model.StockAdjustment, error) {
	if err := l.deps.validate(params); err != nil {
		return nil, err
	}

	adjustments, err := l.deps.Repos.Adjustments.ListStockAdjustments(ctx, repository.ListStockAdjustmentsParams{
		ProductID: params.ProductID,
		Limit:     params.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("stock adjustment repository list stock adjustments: %w", err)
	}

	return adjustments, nil
}

type stockChange struct {
	productID string
	delta     int
	reason    string
	origin    origin
}

// adjust is the funnel every stock-affecting operation goes through.
func (l *StockLedger) adjust(ctx context.Context, change stockChange) (model.Product, error) {
	if change.delta == 0 {
		return model.Product{}, apperr.NewValidation("stock change must not be zero")
	}
	if strings.TrimSpace(change.reason) == "" {
		return model.Product{}, apperr.NewValidation("reason is required")
	}

	var (
		product  model.Product
		attempts int
	)
	err := retry.Do(ctx, l.backoff(), func(ctx context.Context) error {
		attempts++
		p, err := l.attempt(ctx, change)
		if err != nil {
			if lostStockWrite(err) {
				l.logger.DebugContext(ctx, "stock changed concurrently, retrying",
					slog.String("product_id", change.productID),
					slog.Int("attempt", attempts),
				)
				return retry.RetryableError(err)
			}
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		if lostStockWrite(err) {
			return model.Product{}, apperr.NewStockConflict(change.productID, attempts).WrapParent(err)
		}
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) && stepErr.CompensationErr != nil {
			l.logger.ErrorContext(ctx, "stock written without a ledger row",
				slog.String("product_id", change.productID),
				slog.Int("delta", change.delta),
				slog.Any("error", err),
			)
		}
		return model.Product{}, err
	}

	return product, nil
}

// lostStockWrite reports whether the stock write itself lost its
// compare-and-set. A conflict hit while undoing a landed write is not
// retryable: the change is already applied.
func lostStockWrite(err error) bool {
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		return false
	}
	return stepErr.Step == stepWriteStock && errors.Is(stepErr.Err, errStockChanged)
}

func (l *StockLedger) backoff() retry.Backoff {
	if !l.cfg.OptimisticLocking {
		return retry.WithMaxRetries(0, retry.NewConstant(time.Millisecond))
	}
	wait := l.cfg.RetryBackoff
	if wait <= 0 {
		wait = time.Millisecond
	}
	return retry.WithMaxRetries(l.cfg.MaxRetries, retry.NewConstant(wait))
}

// attempt reads the product, validates the change and writes stock then the
// ledger row. If the row cannot be written the stock write is undone.
func (l *StockLedger) attempt(ctx context.Context, change stockChange) (model.Product, error) {
	product, err := l.deps.Repos.Products.GetProduct(ctx, change.productID)
	if err != nil {
		return model.Product{}, fmt.Errorf("product repository get product: %w", err)
	}

	if err := checkStockChange(product, change); err != nil {
		return model.Product{}, err
	}

	seq, err := l.deps.Repos.Adjustments.NextAdjustmentSeq(ctx)
	if err != nil {
		return model.Product{}, fmt.Errorf("stock adjustment repository next adjustment seq: %w", err)
	}

	previous := product.Stock
	next := previous + change.delta
	now := l.deps.Clock()

	adjustment := model.StockAdjustment{
		ID:               fmt.Sprintf("ADJ-%03d", seq),
		ProductID:        product.ID,
		Quantity:         abs(change.delta),
		AdjustmentType:   model.AdjustmentTypeIn,
		Reason:           change.reason,
		PreviousQuantity: previous,
		NewQuantity:      next,
		CreatedAt:        now,
	}
	if change.delta < 0 {
		adjustment.AdjustmentType = model.AdjustmentTypeOut
	}

	if err := saga.New("adjust stock").
		StepWithCompensation(stepWriteStock,
			func(ctx context.Context) error {
				return l.writeStock(ctx, product.ID, previous, next, now)
			},
			func(ctx context.Context) error {
				return l.writeStock(ctx, product.ID, next, previous, l.deps.Clock())
			}).
		Step("append stock adjustment", func(ctx context.Context) error {
			if err := l.deps.Repos.Adjustments.CreateStockAdjustment(ctx, adjustment); err != nil {
				return fmt.Errorf("stock adjustment repository create stock adjustment: %w", err)
			}
			return nil
		}).
		Run(ctx); err != nil {
		return model.Product{}, err
	}

	product.Stock = next
	product.UpdatedAt = now

	l.logger.InfoContext(ctx, "stock adjusted",
		slog.String("product_id", product.ID),
		slog.String("adjustment_id", adjustment.ID),
		slog.String("origin", change.origin.String()),
		slog.Int("previous_quantity", previous),
		slog.Int("new_quantity", next),
	)

	l.deps.invalidateProducts(ctx)
	l.deps.publish(ctx, event.TopicStockAdjusted, product.ID, event.StockAdjustedEvent{
		AdjustmentID:     adjustment.ID,
		ProductID:        product.ID,
		Sku:              product.Sku,
		AdjustmentType:   string(adjustment.AdjustmentType),
		Quantity:         adjustment.Quantity,
		PreviousQuantity: previous,
		NewQuantity:      next,
		ReorderLevel:     product.ReorderLevel,
		Reason:           adjustment.Reason,
		CreatedAt:        now,
	})

	return product, nil
}

// writeStock moves stock from -> to. With optimistic locking the write only
// lands if the row still holds from.
func (l *StockLedger) writeStock(ctx context.Context, productID string, from, to int, at time.Time) error {
	params := repository.UpdateProductStockParams{
		ID:        productID,
		Stock:     to,
		UpdatedAt: at,
	}
	if l.cfg.OptimisticLocking {
		params.ExpectedStock = &from
	}

	ok, err := l.deps.Repos.Products.UpdateProductStock(ctx, params)
	if err != nil {
		return fmt.Errorf("product repository update product stock: %w", err)
	}
	if !ok {
		if l.cfg.OptimisticLocking {
			return errStockChanged
		}
		return apperr.NewProductNotFound(productID)
	}

	return nil
}

func checkStockChange(product model.Product, change stockChange) error {
	if product.IsTombstoned() {
		return apperr.ProductArchivedErr.WithMsg("product %s is archived", product.ID)
	}

	if product.IsSerialized && change.origin == originManual {
		if change.delta < 0 {
			return apperr.SerializedStockRequiresSerialOpErr.WithMsg(
				"product %s is serialized: remove stock by selling or deleting serial numbers", product.ID)
		}
		return apperr.SerialProductStockIncreaseForbiddenErr.WithMsg(
			"product %s is serialized: add stock by registering serial numbers", product.ID)
	}

	if product.Stock+change.delta < 0 {
		return apperr.NewNegativeStock(product.ID, product.Stock, change.delta)
	}

	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
