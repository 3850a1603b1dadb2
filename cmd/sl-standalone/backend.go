package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/http"
	"github.com/tuanvumaihuynh/stock-ledger/internal/relay"
	"github.com/tuanvumaihuynh/stock-ledger/internal/repository"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/cache"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/memory"
)

// backend is the persistence adapter selected by STORE_BACKEND.
type backend struct {
	repos  service.Repositories
	tx     relay.TxRunner
	health http.HealthChecker
	close  func()
}

func openBackend(ctx context.Context, cfg config.Store, pgCfg config.Postgres) (*backend, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory:
		store := memory.New()
		return &backend{
			repos: service.Repositories{
				Products:    store,
				Adjustments: store,
				Serials:     store,
				Orders:      store,
				OrderItems:  store,
				OutboxMsgs:  store,
			},
			tx:     store,
			health: store,
			close:  func() {},
		}, nil
	default:
		pgxPool, err := db.NewPgxPool(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("create pgx pool: %w", err)
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pgxPool, "up"); err != nil {
				pgxPool.Close()
				return nil, fmt.Errorf("migrate schema: %w", err)
			}
		}

		dbClient := db.NewClient(pgxPool)
		return &backend{
			repos: service.Repositories{
				Products:    repository.NewProductRepository(dbClient),
				Adjustments: repository.NewStockAdjustmentRepository(dbClient),
				Serials:     repository.NewSerialNumberRepository(dbClient),
				Orders:      repository.NewOrderRepository(dbClient),
				OrderItems:  repository.NewOrderItemRepository(dbClient),
				OutboxMsgs:  repository.NewOutboxMsgRepository(dbClient),
			},
			tx:     dbClient,
			health: dbClient,
			close:  pgxPool.Close,
		}, nil
	}
}

// openCache returns the redis product list cache, or a no-op one when redis
// is not configured.
func openCache(ctx context.Context, cfg config.Redis, logger *slog.Logger) (cache.ProductListCache, func(), error) {
	if !cfg.Enabled() {
		logger.InfoContext(ctx, "redis not configured, product list cache disabled")
		return cache.Noop{}, func() {}, nil
	}

	rdb, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis client: %w", err)
	}
	return cache.NewRedisCache(rdb, cfg.ListTTL), func() {
		if err := rdb.Close(); err != nil {
			logger.WarnContext(ctx, "error closing redis client", slog.Any("error", err))
		}
	}, nil
}
