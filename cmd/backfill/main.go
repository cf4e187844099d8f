// Command backfill runs the one-shot legacy rewrite: plaintext owners become
// opaque hashes and payload columns become deterministic ciphertext. Safe to
// re-run; already-migrated rows are detected and skipped.
//
// Default mode is a dry run that performs no writes. Pass -apply to commit.
// Exit code is non-zero when any row fails to rewrite.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/dimiplan/dimiplan-server/internal/backfill"
	"github.com/dimiplan/dimiplan-server/internal/config"
	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/repository/postgres"
)

func main() {
	apply := flag.Bool("apply", false, "perform writes (default is dry-run)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	runID := uuid.Must(uuid.NewV4())
	logger = logger.With(zap.String("run", runID.String()))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuration", zap.Error(err))
	}

	keys, err := crypto.New(cfg.Secrets)
	if err != nil {
		logger.Fatal("keyring", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.DB.DSN())
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer db.Close()

	logger.Info("starting", zap.Bool("apply", *apply))

	engine := backfill.New(db.Pool, keys, logger, !*apply)
	reports, err := engine.Run(ctx)
	if err != nil {
		logger.Error("backfill aborted", zap.Error(err))
		os.Exit(1)
	}

	errored := 0
	for _, rep := range reports {
		errored += rep.Errored
	}
	if errored > 0 {
		logger.Error("backfill finished with row failures", zap.Int("errored", errored))
		os.Exit(1)
	}
	logger.Info("backfill complete")
}
