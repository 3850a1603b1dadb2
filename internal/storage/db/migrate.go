package db

import (
	"context"
	"embed"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrateCommands are the goose commands the ledger schema supports.
var MigrateCommands = []string{"up", "down", "status", "version", "reset"}

// Migrate runs a goose command against the embedded ledger schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, command string) error {
	if !slices.Contains(MigrateCommands, command) {
		return fmt.Errorf("unsupported migrate command %q, expected one of %v", command, MigrateCommands)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := goose.RunContext(ctx, command, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
