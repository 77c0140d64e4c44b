package main

import (
	"context"
	"fmt"

	"github.com/clubkas/clubkas/internal/config"
	"github.com/clubkas/clubkas/internal/storage"
)

// openStorage resolves the configuration, opens the ledger database and
// brings the schema up to date. The caller owns Close.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, config.Config, error) {
	cfg, err := config.FromViper()
	if err != nil {
		return nil, config.Config{}, err
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, config.Config{}, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	return store, cfg, nil
}
