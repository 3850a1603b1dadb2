package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/model"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/memory"
)

var defaultLedgerCfg = config.Ledger{
	OptimisticLocking: true,
	MaxRetries:        3,
	RetryBackoff:      time.Millisecond,
}

// tickClock advances one millisecond per reading.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fixture struct {
	store *memory.Store
	svc   *service.Services
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	ledger config.Ledger
	repos  func(s *memory.Store) service.Repositories
	cache  *mapCache
	clock  func() time.Time
}

func withLedger(cfg config.Ledger) fixtureOption {
	return func(c *fixtureConfig) { c.ledger = cfg }
}

// withRepos lets a test wrap the store's repositories, usually to inject faults.
func withRepos(fn func(s *memory.Store) service.Repositories) fixtureOption {
	return func(c *fixtureConfig) { c.repos = fn }
}

// withClock replaces the ticking test clock, e.g. with a frozen one.
func withClock(now func() time.Time) fixtureOption {
	return func(c *fixtureConfig) { c.clock = now }
}

func withCache(cache *mapCache) fixtureOption {
	return func(c *fixtureConfig) { c.cache = cache }
}

func storeRepos(s *memory.Store) service.Repositories {
	return service.Repositories{
		Products:    s,
		Adjustments: s,
		Serials:     s,
		Orders:      s,
		OrderItems:  s,
		OutboxMsgs:  s,
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{ledger: defaultLedgerCfg, repos: storeRepos}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memory.New()
	clock := &tickClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	deps := service.Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Repos:  cfg.repos(store),
		Clock:  clock.Now,
	}
	if cfg.clock != nil {
		deps.Clock = cfg.clock
	}
	if cfg.cache != nil {
		deps.Cache = cfg.cache
	}

	return &fixture{
		store: store,
		svc:   service.New(cfg.ledger, deps),
	}
}

func (f *fixture) createProduct(t *testing.T, sku string, stock int) model.Product {
	t.Helper()
	p, err := f.svc.Products.CreateProduct(context.Background(), service.CreateProductParams{
		Sku:          sku,
		Name:         "Product " + sku,
		Category:     "General",
		Location:     "A1",
		ReorderLevel: 2,
		CostPrice:    4,
		SellingPrice: 10,
		InitialStock: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) createSerializedProduct(t *testing.T, sku string, serials ...string) model.Product {
	t.Helper()
	p, err := f.svc.Products.CreateProduct(context.Background(), service.CreateProductParams{
		Sku:          sku,
		Name:         "Serialized " + sku,
		SellingPrice: 100,
		IsSerialized: true,
		Serials:      serials,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) adjustments(t *testing.T, productID string) []model.StockAdjustment {
	t.Helper()
	rows, err := f.store.ListStockAdjustments(context.Background(), repository.ListStockAdjustmentsParams{ProductID: productID})
	require.NoError(t, err)
	return rows
}

func (f *fixture) serials(t *testing.T, productID string) []model.SerialNumber {
	t.Helper()
	rows, err := f.store.ListSerialNumbers(context.Background(), repository.ListSerialNumbersParams{ProductID: &productID})
	require.NoError(t, err)
	return rows
}

func (f *fixture) availableSerials(t *testing.T, productID string) int {
	t.Helper()
	n, err := f.store.CountAvailableSerialNumbers(context.Background(), productID)
	require.NoError(t, err)
	return n
}

// mapCache is an in-process ProductListCache that records invalidations.
type mapCache struct {
	mu            sync.Mutex
	products      []model.Product
	ok            bool
	hits          int
	invalidations int
}

func (c *mapCache) GetProducts(context.Context) ([]model.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok {
		c.hits++
	}
	return c.products, c.ok, nil
}

func (c *mapCache) SetProducts(_ context.Context, products []model.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products, c.ok = products, true
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products, c.ok = nil, false
	c.invalidations++
	return nil
}
