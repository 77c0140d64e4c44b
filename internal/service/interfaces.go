// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/clubkas/clubkas/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	AccountNumber string
	Limit         int
}

// Storage defines the contract for the ledger's persistence layer.
// Every batch method is atomic: it either commits all of its items or
// none of them. The orchestrator relies on that to give write batches
// all-or-nothing semantics.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionBySequence(ctx context.Context, sequenceNumber string) (*model.Transaction, error)
	UpdateTransactions(ctx context.Context, transactions []model.Transaction) error
	DeleteTransactions(ctx context.Context, ids []string) error
	SaveSplit(ctx context.Context, parent model.Transaction, children []model.Transaction) error
	AppendEntityMatches(ctx context.Context, transactionID string, matches []model.EntityMatch) error

	// Backup operations
	SaveBackup(ctx context.Context, backup *model.Backup) error
	GetBackup(ctx context.Context, id string) (*model.Backup, error)
	ListBackups(ctx context.Context) ([]model.Backup, error)

	// Run reports
	SaveRunReport(ctx context.Context, report *model.RunReport) error
	ListRunReports(ctx context.Context) ([]model.RunReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
