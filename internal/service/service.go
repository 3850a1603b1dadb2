package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/cache"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/outbox"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/validator"
)

// Repositories are the row-level store capabilities the services coordinate.
type Repositories struct {
	Products    repository.ProductRepository
	Adjustments repository.StockAdjustmentRepository
	Serials     repository.SerialNumberRepository
	Orders      repository.OrderRepository
	OrderItems  repository.OrderItemRepository
	// OutboxMsgs is optional; without it no domain events are recorded.
	OutboxMsgs repository.OutboxMsgRepository
}

// Deps bundles the collaborators shared by every service. Zero fields are
// filled with defaults.
type Deps struct {
	Logger    *slog.Logger
	Repos     Repositories
	Cache     cache.ProductListCache
	Validator validator.Validator
	Clock     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	if d.Validator == nil {
		v, err := validator.NewDefaultValidator()
		if err != nil {
			panic(err)
		}
		d.Validator = v
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Deps) validate(params any) error {
	if err := d.Validator.Validate(params); err != nil {
		return apperr.ValidationErr.WrapParent(err)
	}
	return nil
}

// invalidateProducts drops the cached listing after a product mutation.
func (d Deps) invalidateProducts(ctx context.Context) {
	if err := d.Cache.Invalidate(ctx); err != nil {
		d.Logger.WarnContext(ctx, "error invalidating product list cache", slog.Any("error", err))
	}
}

// publish records a domain event in the outbox. A failure is logged and
// does not fail the command that produced the event.
func (d Deps) publish(ctx context.Context, topic, partitionKey string, ev any) {
	if d.Repos.OutboxMsgs == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		d.Logger.WarnContext(ctx, "error marshaling event", slog.String("topic", topic), slog.Any("error", err))
		return
	}

	if err := d.Repos.OutboxMsgs.CreateOutboxMsg(ctx, repository.CreateOutboxMsgParams{
		Topic:        topic,
		Headers:      outbox.NewHeaders(ctx, topic),
		Payload:      payload,
		PartitionKey: &partitionKey,
	}); err != nil {
		d.Logger.WarnContext(ctx, "error recording event",
			slog.String("topic", topic),
			slog.String("partition_key", partitionKey),
			slog.Any("error", err),
		)
	}
}

// Services is the command/query API wired over one set of repositories.
type Services struct {
	Ledger   *StockLedger
	Serials  *SerialTracker
	Products *ProductService
	Orders   *OrderService
	Bulk     *BulkService
}

func New(cfg config.Ledger, deps Deps) *Services {
	deps = deps.withDefaults()

	ledger := NewStockLedger(cfg, deps)
	serials := NewSerialTracker(ledger, deps)
	guard := NewIntegrityGuard(deps)

	return &Services{
		Ledger:   ledger,
		Serials:  serials,
		Products: NewProductService(ledger, serials, guard, deps),
		Orders:   NewOrderService(ledger, serials, guard, deps),
		Bulk:     NewBulkService(guard, deps),
	}
}
