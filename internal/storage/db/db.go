package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the query surface shared by the pool and an open transaction, so a
// repository can be rebound to a transaction with WithDB.
type DB interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row

	// WithTx runs txFunc in a transaction, or in a savepoint when already
	// inside one. The transaction commits when txFunc returns nil.
	WithTx(ctx context.Context, txFunc func(DB) error) error
}

var _ DB = (*Client)(nil)

type Client struct {
	*pgxpool.Pool
}

// NewClient creates a new db client.
func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{pool}
}

func (c *Client) WithTx(ctx context.Context, txFunc func(DB) error) error {
	if err := pgx.BeginTxFunc(ctx, c.Pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return txFunc(&txDB{Tx: tx})
	}); err != nil {
		return fmt.Errorf("run transaction: %w", err)
	}
	return nil
}

// IsHealthy pings the database.
func (c *Client) IsHealthy(ctx context.Context) (bool, error) {
	if err := c.Ping(ctx); err != nil {
		return false, fmt.Errorf("ping database: %w", err)
	}
	return true, nil
}

type txDB struct {
	pgx.Tx
}

func (t *txDB) WithTx(ctx context.Context, txFunc func(DB) error) error {
	return pgx.BeginFunc(ctx, t.Tx, func(tx pgx.Tx) error {
		return txFunc(&txDB{Tx: tx})
	})
}
