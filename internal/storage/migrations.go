package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial ledger schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					sequence_number TEXT UNIQUE NOT NULL,
					account_number TEXT NOT NULL,
					execution_date DATETIME NOT NULL,
					value_date DATETIME,
					amount TEXT NOT NULL,
					counterparty_name TEXT,
					communication TEXT,
					category TEXT,
					is_parent INTEGER NOT NULL DEFAULT 0,
					child_count INTEGER NOT NULL DEFAULT 0,
					parent_transaction_id TEXT,
					dedup_fingerprint TEXT NOT NULL,
					matched_entities TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_number)`,
				`CREATE INDEX idx_transactions_fingerprint ON transactions(dedup_fingerprint)`,
				`CREATE INDEX idx_transactions_parent ON transactions(parent_transaction_id)`,
				`CREATE INDEX idx_transactions_execution_date ON transactions(execution_date)`,
			}
			for _, q := range queries {
				if _, err := tx.Exec(q); err != nil {
					return fmt.Errorf("migration 1: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Pre-deletion backups",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS backups (
				id TEXT PRIMARY KEY,
				taken_at DATETIME NOT NULL,
				reason TEXT NOT NULL,
				payload TEXT NOT NULL
			)`)
			if err != nil {
				return fmt.Errorf("migration 2: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Reconciliation run reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS run_reports (
				id TEXT PRIMARY KEY,
				started_at DATETIME NOT NULL,
				finished_at DATETIME,
				state TEXT NOT NULL,
				report TEXT NOT NULL
			)`)
			if err != nil {
				return fmt.Errorf("migration 3: %w", err)
			}
			return nil
		},
	},
}

// Migrate runs all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	return nil
}
