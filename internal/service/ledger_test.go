package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/event"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/memory"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/saga"
	"github.com/tuanvumaihuynh/stock-ledger/pkg/zerror"
)

// failingAdjustments rejects every new ledger row.
type failingAdjustments struct {
	repository.StockAdjustmentRepository
}

func (failingAdjustments) CreateStockAdjustment(context.Context, model.StockAdjustment) error {
	return errors.New("connection reset")
}

// racingProducts lets another writer add interference to the stock between
// the ledger's read and its write, the given number of times.
type racingProducts struct {
	repository.ProductRepository
	races        int
	interference int
}

func (r *racingProducts) GetProduct(ctx context.Context, id string) (model.Product, error) {
	p, err := r.ProductRepository.GetProduct(ctx, id)
	if err != nil || r.races == 0 {
		return p, err
	}
	r.races--
	_, werr := r.ProductRepository.UpdateProductStock(ctx, repository.UpdateProductStockParams{
		ID:        id,
		Stock:     p.Stock + r.interference,
		UpdatedAt: time.Now(),
	})
	return p, werr
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()

	t.Run("Should chain one ledger row per accepted change", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-1", 10)

		deltas := []int{5, -3, 7, -12, 1}
		for _, d := range deltas {
			_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: d, Reason: "count"})
			require.NoError(t, err)
		}

		rows := f.adjustments(t, p.ID)
		slices.Reverse(rows)
		// initial stock row plus one per delta
		require.Len(t, rows, len(deltas)+1)

		sum := 0
		for i, row := range rows {
			require.NoError(t, row.Validate())
			if i > 0 {
				assert.Equal(t, rows[i-1].NewQuantity, row.PreviousQuantity)
				sum += row.SignedDelta()
			}
		}
		assert.Equal(t, 10, rows[0].NewQuantity)
		assert.Equal(t, f.stock(t, p.ID)-10, sum)
		assert.Equal(t, 8, f.stock(t, p.ID))
	})

	t.Run("Should record direction and magnitude", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-1", 10)

		got, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: -4, Reason: "damaged"})
		require.NoError(t, err)
		assert.Equal(t, 6, got.Stock)

		rows := f.adjustments(t, p.ID)
		require.NotEmpty(t, rows)
		assert.Equal(t, model.AdjustmentTypeOut, rows[0].AdjustmentType)
		assert.Equal(t, 4, rows[0].Quantity)
		assert.Equal(t, "damaged", rows[0].Reason)
		assert.Equal(t, 10, rows[0].PreviousQuantity)
		assert.Equal(t, 6, rows[0].NewQuantity)
	})

	t.Run("Should reject a change below zero and leave state unchanged", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-1", 3)

		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: -4, Reason: "sale"})
		assert.True(t, zerror.IsCode(err, apperr.NegativeStockCode))
		assert.Equal(t, 3, f.stock(t, p.ID))
		assert.Len(t, f.adjustments(t, p.ID), 1)
	})

	t.Run("Should reject invalid params", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-1", 3)

		tests := []struct {
			name   string
			params service.AdjustStockParams
		}{
			{name: "zero delta", params: service.AdjustStockParams{ProductID: p.ID, Delta: 0, Reason: "x"}},
			{name: "missing reason", params: service.AdjustStockParams{ProductID: p.ID, Delta: 1, Reason: "  "}},
			{name: "missing product", params: service.AdjustStockParams{Delta: 1, Reason: "x"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.svc.Ledger.AdjustStock(ctx, tt.params)
				assert.True(t, zerror.IsCode(err, apperr.ValidationErrorCode))
			})
		}
		assert.Equal(t, 3, f.stock(t, p.ID))
	})

	t.Run("Should report an unknown product as not found", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: "PRD-999", Delta: 1, Reason: "x"})
		assert.True(t, zerror.IsCode(err, apperr.ProductNotFoundCode))
	})

	t.Run("Should forbid manual changes to serialized products", func(t *testing.T) {
		f := newFixture(t)
		p := f.createSerializedProduct(t, "SER-1", "A", "B")

		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: -1, Reason: "x"})
		assert.True(t, zerror.IsCode(err, apperr.SerializedStockRequiresSerialOpCode))

		_, err = f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: 1, Reason: "x"})
		assert.True(t, zerror.IsCode(err, apperr.SerialProductStockIncreaseForbiddenCode))

		assert.Equal(t, 2, f.stock(t, p.ID))
	})

	t.Run("Should compensate the stock write when the ledger row fails", func(t *testing.T) {
		var store *memory.Store
		f := newFixture(t, withRepos(func(s *memory.Store) service.Repositories {
			store = s
			repos := storeRepos(s)
			repos.Adjustments = failingAdjustments{StockAdjustmentRepository: s}
			return repos
		}))
		seedActiveProduct(t, store, "PRD-001", 5)

		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: "PRD-001", Delta: 2, Reason: "count"})
		require.Error(t, err)

		var stepErr *saga.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "append stock adjustment", stepErr.Step)
		assert.Equal(t, []string{"write stock"}, stepErr.Compensated)
		assert.NoError(t, stepErr.CompensationErr)

		assert.Equal(t, 5, f.stock(t, "PRD-001"))
		assert.Empty(t, f.store.OutboxTopics())
	})

	t.Run("Should publish a stock adjusted event", func(t *testing.T) {
		f := newFixture(t)
		p := f.createProduct(t, "SKU-1", 5)

		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: 1, Reason: "count"})
		require.NoError(t, err)

		assert.Equal(t, []string{event.TopicStockAdjusted, event.TopicStockAdjusted}, f.store.OutboxTopics())
	})
}

func TestAdjustStockConcurrentWriters(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, cfg config.Ledger, races int) *fixture {
		t.Helper()
		var store *memory.Store
		f := newFixture(t, withLedger(cfg), withRepos(func(s *memory.Store) service.Repositories {
			store = s
			repos := storeRepos(s)
			repos.Products = &racingProducts{ProductRepository: s, races: races, interference: 10}
			return repos
		}))
		seedActiveProduct(t, store, "PRD-001", 5)
		return f
	}

	t.Run("Should retry and keep both changes with optimistic locking", func(t *testing.T) {
		f := setup(t, defaultLedgerCfg, 1)

		got, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: "PRD-001", Delta: 3, Reason: "count"})
		require.NoError(t, err)
		assert.Equal(t, 18, got.Stock)
		assert.Equal(t, 18, f.stock(t, "PRD-001"))

		rows := f.adjustments(t, "PRD-001")
		require.Len(t, rows, 1)
		assert.Equal(t, 15, rows[0].PreviousQuantity)
		assert.Equal(t, 18, rows[0].NewQuantity)
	})

	t.Run("Should give up with a stock conflict when retries run out", func(t *testing.T) {
		f := setup(t, defaultLedgerCfg, 10)

		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: "PRD-001", Delta: 3, Reason: "count"})
		assert.True(t, zerror.IsCode(err, apperr.StockConflictCode))
		assert.Contains(t, err.Error(), "4 attempts")

		// only the interfering writes landed
		assert.Equal(t, 45, f.stock(t, "PRD-001"))
		assert.Empty(t, f.adjustments(t, "PRD-001"))
	})

	t.Run("Should lose the concurrent change without optimistic locking", func(t *testing.T) {
		f := setup(t, config.Ledger{OptimisticLocking: false}, 1)

		got, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: "PRD-001", Delta: 3, Reason: "count"})
		require.NoError(t, err)
		assert.Equal(t, 8, got.Stock)
		assert.Equal(t, 8, f.stock(t, "PRD-001"))
	})
}

// racingAdjustments fails the next ledger row once armed and lets another
// writer move the stock at that moment, so the undo of the stock write
// cannot apply.
type racingAdjustments struct {
	repository.StockAdjustmentRepository
	products     repository.ProductRepository
	armed        bool
	interference int
}

func (r *racingAdjustments) CreateStockAdjustment(ctx context.Context, a model.StockAdjustment) error {
	if !r.armed {
		return r.StockAdjustmentRepository.CreateStockAdjustment(ctx, a)
	}
	r.armed = false
	p, err := r.products.GetProduct(ctx, a.ProductID)
	if err != nil {
		return err
	}
	if _, err := r.products.UpdateProductStock(ctx, repository.UpdateProductStockParams{
		ID:        a.ProductID,
		Stock:     p.Stock + r.interference,
		UpdatedAt: time.Now(),
	}); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func TestAdjustStockFailedCompensation(t *testing.T) {
	ctx := context.Background()

	var adjustments *racingAdjustments
	f := newFixture(t, withRepos(func(s *memory.Store) service.Repositories {
		repos := storeRepos(s)
		adjustments = &racingAdjustments{StockAdjustmentRepository: s, products: s, interference: 1}
		repos.Adjustments = adjustments
		return repos
	}))
	p := f.createProduct(t, "SKU-1", 10)
	adjustments.armed = true

	_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: 5, Reason: "count"})
	require.Error(t, err)
	assert.False(t, zerror.IsCode(err, apperr.StockConflictCode))

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "append stock adjustment", stepErr.Step)
	assert.Equal(t, []string{"write stock"}, stepErr.Completed)
	assert.Empty(t, stepErr.Compensated)
	require.Error(t, stepErr.CompensationErr)

	// the change landed once and was not repeated
	assert.Equal(t, 16, f.stock(t, p.ID))
	rows := f.adjustments(t, p.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "Initial stock", rows[0].Reason)
}

func TestListStockAdjustments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.createProduct(t, "SKU-1", 5)

	for range 3 {
		_, err := f.svc.Ledger.AdjustStock(ctx, service.AdjustStockParams{ProductID: p.ID, Delta: 1, Reason: "count"})
		require.NoError(t, err)
	}

	t.Run("Should list newest first", func(t *testing.T) {
		rows, err := f.svc.Ledger.ListStockAdjustments(ctx, service.ListStockAdjustmentsParams{ProductID: p.ID})
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, 8, rows[0].NewQuantity)
		assert.Equal(t, "Initial stock", rows[3].Reason)
	})

	t.Run("Should apply the limit", func(t *testing.T) {
		rows, err := f.svc.Ledger.ListStockAdjustments(ctx, service.ListStockAdjustmentsParams{ProductID: p.ID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func seedActiveProduct(t *testing.T, s *memory.Store, id string, stock int) {
	t.Helper()
	require.NoError(t, s.CreateProduct(context.Background(), model.Product{
		ID:     id,
		Sku:    "SKU-" + id,
		Name:   "Product " + id,
		Stock:  stock,
		Status: model.ProductStatusActive,
	}))
}
