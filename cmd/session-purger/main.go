package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	identitypostgres "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/persistence/postgres"
	walkpostgres "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/postgres"
	platformpostgres "github.com/Apurer/dogwalk-api/internal/platform/postgres"
)

const purgeTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("service", "session-purger"))
	if err := run(logger); err != nil {
		logger.Error("purge failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	defer cleanup()
	if db == nil {
		return errors.New("postgres is required to purge sessions and idempotency keys")
	}

	sessions, err := identitypostgres.NewSessionStore(db).PurgeExpired(ctx)
	if err != nil {
		return err
	}
	keys, err := walkpostgres.NewIdempotencyStore(db).PurgeExpired(ctx)
	if err != nil {
		return err
	}
	logger.Info("purge completed", slog.Int64("sessions", sessions), slog.Int64("idempotencyKeys", keys))
	return nil
}
