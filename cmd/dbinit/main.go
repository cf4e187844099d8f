// Command dbinit provisions a fresh database: it applies all embedded schema
// migrations and exits. Run once per environment before starting workers.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dimiplan/dimiplan-server/internal/config"
	"github.com/dimiplan/dimiplan-server/internal/migrate"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DB.DSN()); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("schema up to date")
}
