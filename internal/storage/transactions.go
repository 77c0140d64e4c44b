package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/service"
)

const transactionColumns = `id, sequence_number, account_number, execution_date, value_date,
	amount, counterparty_name, communication, category, is_parent, child_count,
	parent_transaction_id, dedup_fingerprint, matched_entities`

// SaveTransactions persists a batch of transactions atomically. Records
// whose sequence number already exists are ignored, so re-running an
// import is harmless.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, sequence_number, account_number, execution_date, value_date,
			amount, counterparty_name, communication, category, is_parent,
			child_count, parent_transaction_id, dedup_fingerprint, matched_entities
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		matchesJSON, marshalErr := marshalMatches(txn.MatchedEntities)
		if marshalErr != nil {
			return marshalErr
		}
		if _, err = stmt.ExecContext(ctx,
			txn.ID,
			txn.SequenceNumber,
			txn.AccountNumber,
			txn.ExecutionDate,
			txn.ValueDate,
			txn.Amount.String(),
			txn.CounterpartyName,
			txn.Communication,
			txn.Category,
			txn.IsParent,
			txn.ChildCount,
			nullable(txn.ParentTransactionID),
			txn.DedupFingerprint,
			matchesJSON,
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txn.SequenceNumber, err)
		}
	}

	return tx.Commit()
}

// GetTransactions returns transactions matching the filter, ordered by
// execution date then sequence number.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	var conditions []string
	var args []any

	if filter.StartDate != nil {
		conditions = append(conditions, "execution_date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "execution_date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.AccountNumber != "" {
		conditions = append(conditions, "account_number = ?")
		args = append(args, filter.AccountNumber)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY execution_date, sequence_number"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

// GetTransactionByID returns a single transaction by ledger ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionWhere(ctx, "id = ?", id)
}

// GetTransactionBySequence returns a single transaction by its bank
// statement sequence number.
func (s *SQLiteStorage) GetTransactionBySequence(ctx context.Context, sequenceNumber string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sequenceNumber, "sequenceNumber"); err != nil {
		return nil, err
	}
	return s.getTransactionWhere(ctx, "sequence_number = ?", sequenceNumber)
}

func (s *SQLiteStorage) getTransactionWhere(ctx context.Context, where string, arg any) (*model.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE "+where, arg)
	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// UpdateTransactions rewrites a batch of existing transactions
// atomically.
func (s *SQLiteStorage) UpdateTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE transactions SET
			account_number = ?, execution_date = ?, value_date = ?, amount = ?,
			counterparty_name = ?, communication = ?, category = ?, is_parent = ?,
			child_count = ?, parent_transaction_id = ?, dedup_fingerprint = ?,
			matched_entities = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, txn := range transactions {
		matchesJSON, marshalErr := marshalMatches(txn.MatchedEntities)
		if marshalErr != nil {
			return marshalErr
		}
		result, execErr := stmt.ExecContext(ctx,
			txn.AccountNumber,
			txn.ExecutionDate,
			txn.ValueDate,
			txn.Amount.String(),
			txn.CounterpartyName,
			txn.Communication,
			txn.Category,
			txn.IsParent,
			txn.ChildCount,
			nullable(txn.ParentTransactionID),
			txn.DedupFingerprint,
			matchesJSON,
			txn.ID,
		)
		if execErr != nil {
			return fmt.Errorf("failed to update transaction %s: %w", txn.ID, execErr)
		}
		affected, _ := result.RowsAffected()
		if affected == 0 {
			return fmt.Errorf("transaction %s: %w", txn.ID, common.ErrNotFound)
		}
	}

	return tx.Commit()
}

// DeleteTransactions removes a batch of transactions atomically.
// Callers are expected to have written a backup first.
func (s *SQLiteStorage) DeleteTransactions(ctx context.Context, ids []string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM transactions WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("failed to delete transaction %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// SaveSplit commits a ventilation split atomically: the children are
// inserted and the parent's role flags are rewritten in the same
// database transaction, so a failure never leaves children behind a
// parent that still counts as a normal transaction.
func (s *SQLiteStorage) SaveSplit(ctx context.Context, parent model.Transaction, children []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(&parent); err != nil {
		return err
	}
	if err := validateTransactions(children); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Plain INSERT: a sequence collision on a freshly derived child is
	// a real error, not a re-import to skip.
	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, sequence_number, account_number, execution_date, value_date,
			amount, counterparty_name, communication, category, is_parent,
			child_count, parent_transaction_id, dedup_fingerprint, matched_entities
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for _, child := range children {
		matchesJSON, marshalErr := marshalMatches(child.MatchedEntities)
		if marshalErr != nil {
			return marshalErr
		}
		if _, err = insert.ExecContext(ctx,
			child.ID,
			child.SequenceNumber,
			child.AccountNumber,
			child.ExecutionDate,
			child.ValueDate,
			child.Amount.String(),
			child.CounterpartyName,
			child.Communication,
			child.Category,
			child.IsParent,
			child.ChildCount,
			nullable(child.ParentTransactionID),
			child.DedupFingerprint,
			matchesJSON,
		); err != nil {
			return fmt.Errorf("failed to save child %s: %w", child.SequenceNumber, err)
		}
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE transactions SET is_parent = ?, child_count = ? WHERE id = ?",
		parent.IsParent, parent.ChildCount, parent.ID)
	if err != nil {
		return fmt.Errorf("failed to update parent %s: %w", parent.ID, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("parent %s: %w", parent.ID, common.ErrNotFound)
	}

	return tx.Commit()
}

// AppendEntityMatches adds entity matches to a transaction without
// disturbing the ones already recorded.
func (s *SQLiteStorage) AppendEntityMatches(ctx context.Context, transactionID string, matches []model.EntityMatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: matches", ErrEmptySlice)
	}

	txn, err := s.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return err
	}
	txn.MatchedEntities = append(txn.MatchedEntities, matches...)
	return s.UpdateTransactions(ctx, []model.Transaction{*txn})
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		txn         model.Transaction
		amountStr   string
		parentID    sql.NullString
		valueDate   sql.NullTime
		matchesJSON sql.NullString
	)
	err := row.Scan(
		&txn.ID,
		&txn.SequenceNumber,
		&txn.AccountNumber,
		&txn.ExecutionDate,
		&valueDate,
		&amountStr,
		&txn.CounterpartyName,
		&txn.Communication,
		&txn.Category,
		&txn.IsParent,
		&txn.ChildCount,
		&parentID,
		&txn.DedupFingerprint,
		&matchesJSON,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Transaction{}, err
		}
		return model.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("corrupt amount %q for transaction %s: %w", amountStr, txn.ID, err)
	}
	if parentID.Valid {
		txn.ParentTransactionID = parentID.String
	}
	if valueDate.Valid {
		txn.ValueDate = valueDate.Time
	}
	if matchesJSON.Valid && matchesJSON.String != "" {
		if err := json.Unmarshal([]byte(matchesJSON.String), &txn.MatchedEntities); err != nil {
			return model.Transaction{}, fmt.Errorf("corrupt entity matches for transaction %s: %w", txn.ID, err)
		}
	}
	return txn, nil
}

func marshalMatches(matches []model.EntityMatch) (string, error) {
	if len(matches) == 0 {
		return "", nil
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("failed to marshal entity matches: %w", err)
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
