// Package testutil provides test helpers for the club ledger.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/storage"
)

// SetupTestDB creates a migrated in-memory SQLite store and registers
// its cleanup.
func SetupTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// Txn builds a minimal valid transaction for tests. The amount is given
// as a string so tests read like the statements they model.
func Txn(id, sequence, account, amount string, date time.Time) model.Transaction {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		panic("testutil.Txn: bad amount " + amount)
	}
	return model.Transaction{
		ID:               id,
		SequenceNumber:   sequence,
		AccountNumber:    account,
		ExecutionDate:    date,
		ValueDate:        date,
		Amount:           amt,
		DedupFingerprint: "fp-" + id,
	}
}
