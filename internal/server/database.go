package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/repository"
)

// ConnectDB opens the result store named by cfg.DSN and migrates it.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.Store, error) {
	logger.Info("connecting to database", "dialect", repository.DialectOf(cfg.DSN))
	store, err := repository.Open(ctx, repository.ConfigFrom(cfg), logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	logger.Info("successfully connected to database")
	return store, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, store *repository.Store, logger *slog.Logger, timeout time.Duration) error {
	logger.Debug("pinging database")
	if err := store.HealthCheck(ctx, timeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// CloseDB closes the database connections gracefully
func CloseDB(store *repository.Store, logger *slog.Logger) {
	if store == nil {
		return
	}
	logger.Info("closing database connections")
	store.Close()
	logger.Info("database connections closed")
}
