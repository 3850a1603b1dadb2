// Command sl-migrate manages the ledger schema.
//
//	sl-migrate [up|down|status|version|reset]
//
// The command defaults to up.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
	"github.com/tuanvumaihuynh/stock-ledger/internal/log"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/db"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if err := run(command); err != nil {
		fmt.Fprintf(os.Stderr, "sl-migrate %s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	type Config struct {
		Log      config.Log
		Postgres config.Postgres
	}
	cfg, err := config.New[Config]()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := log.NewSlogLogger(cfg.Log)

	pool, err := db.NewPgxPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("create pgx pool: %w", err)
	}
	defer pool.Close()

	start := time.Now()
	if err := db.Migrate(ctx, pool, command); err != nil {
		return err
	}
	logger.InfoContext(ctx, "schema migration finished",
		slog.String("command", command),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}
