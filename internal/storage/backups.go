package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/model"
)

// backupTransaction is the serialized form of a snapshotted transaction.
// Amounts are stored as strings so the snapshot round-trips exactly.
type backupTransaction struct {
	ExecutionDate       time.Time           `json:"execution_date"`
	ValueDate           time.Time           `json:"value_date"`
	ID                  string              `json:"id"`
	SequenceNumber      string              `json:"sequence_number"`
	AccountNumber       string              `json:"account_number"`
	Amount              string              `json:"amount"`
	CounterpartyName    string              `json:"counterparty_name"`
	Communication       string              `json:"communication"`
	Category            string              `json:"category"`
	ParentTransactionID string              `json:"parent_transaction_id,omitempty"`
	DedupFingerprint    string              `json:"dedup_fingerprint"`
	MatchedEntities     []model.EntityMatch `json:"matched_entities,omitempty"`
	ChildCount          int                 `json:"child_count"`
	IsParent            bool                `json:"is_parent"`
}

// SaveBackup persists a pre-mutation snapshot.
func (s *SQLiteStorage) SaveBackup(ctx context.Context, backup *model.Backup) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if backup == nil {
		return fmt.Errorf("%w: backup", ErrNilParameter)
	}
	if err := validateString(backup.ID, "backup.ID"); err != nil {
		return err
	}

	serialized := make([]backupTransaction, 0, len(backup.Transactions))
	for _, txn := range backup.Transactions {
		serialized = append(serialized, backupTransaction{
			ID:                  txn.ID,
			SequenceNumber:      txn.SequenceNumber,
			AccountNumber:       txn.AccountNumber,
			ExecutionDate:       txn.ExecutionDate,
			ValueDate:           txn.ValueDate,
			Amount:              txn.Amount.String(),
			CounterpartyName:    txn.CounterpartyName,
			Communication:       txn.Communication,
			Category:            txn.Category,
			IsParent:            txn.IsParent,
			ChildCount:          txn.ChildCount,
			ParentTransactionID: txn.ParentTransactionID,
			DedupFingerprint:    txn.DedupFingerprint,
			MatchedEntities:     txn.MatchedEntities,
		})
	}

	payload, err := json.Marshal(serialized)
	if err != nil {
		return fmt.Errorf("failed to marshal backup payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO backups (id, taken_at, reason, payload) VALUES (?, ?, ?, ?)",
		backup.ID, backup.TakenAt, backup.Reason, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save backup %s: %w", backup.ID, err)
	}
	return nil
}

// GetBackup loads a snapshot by ID.
func (s *SQLiteStorage) GetBackup(ctx context.Context, id string) (*model.Backup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		backup  model.Backup
		payload string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, taken_at, reason, payload FROM backups WHERE id = ?", id).
		Scan(&backup.ID, &backup.TakenAt, &backup.Reason, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load backup %s: %w", id, err)
	}

	transactions, err := unmarshalBackupPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("backup %s: %w", id, err)
	}
	backup.Transactions = transactions
	return &backup, nil
}

// ListBackups returns all snapshots, newest first, without payloads
// hydrated into full transactions (the payload can be large).
func (s *SQLiteStorage) ListBackups(ctx context.Context) ([]model.Backup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, taken_at, reason FROM backups ORDER BY taken_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var backups []model.Backup
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.TakenAt, &b.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		backups = append(backups, b)
	}
	return backups, rows.Err()
}

func unmarshalBackupPayload(payload string) ([]model.Transaction, error) {
	var serialized []backupTransaction
	if err := json.Unmarshal([]byte(payload), &serialized); err != nil {
		return nil, fmt.Errorf("corrupt backup payload: %w", err)
	}

	transactions := make([]model.Transaction, 0, len(serialized))
	for _, bt := range serialized {
		amount, err := decimal.NewFromString(bt.Amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q in backup: %w", bt.Amount, err)
		}
		transactions = append(transactions, model.Transaction{
			ID:                  bt.ID,
			SequenceNumber:      bt.SequenceNumber,
			AccountNumber:       bt.AccountNumber,
			ExecutionDate:       bt.ExecutionDate,
			ValueDate:           bt.ValueDate,
			Amount:              amount,
			CounterpartyName:    bt.CounterpartyName,
			Communication:       bt.Communication,
			Category:            bt.Category,
			IsParent:            bt.IsParent,
			ChildCount:          bt.ChildCount,
			ParentTransactionID: bt.ParentTransactionID,
			DedupFingerprint:    bt.DedupFingerprint,
			MatchedEntities:     bt.MatchedEntities,
		})
	}
	return transactions, nil
}
