// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Store errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Ledger errors.
	ErrNoTransactions = errors.New("no transactions in scope")
	ErrRoleConflict   = errors.New("transaction is both parent and child")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ValidationError signals that a mutating operation was rejected before
// any write happened. Split creation returns it when child amounts do
// not sum to the parent amount.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("validation failed: %s", e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError with a detail message.
func NewValidationError(detail string, err error) error {
	return &ValidationError{Detail: detail, Err: err}
}

// InconsistencyWarning describes a non-fatal defect found in the ledger:
// orphan children, declared/actual child count mismatches, parent/child
// amount deltas. Warnings are reported, never auto-corrected; repair is
// a separate, explicit operation.
type InconsistencyWarning struct {
	Kind          string
	TransactionID string
	Detail        string
}

func (w InconsistencyWarning) String() string {
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.TransactionID, w.Detail)
}

// Warning kinds surfaced during scans.
const (
	WarnOrphanChild        = "orphan_child"
	WarnChildCountMismatch = "child_count_mismatch"
	WarnAmountMismatch     = "amount_mismatch"
	WarnRoleConflict       = "role_conflict"
)

// PersistenceError reports a failed write batch. Batches before
// BatchIndex are committed and stand; batches from BatchIndex on were
// not attempted or did not commit.
type PersistenceError struct {
	Err        error
	BatchIndex int
	Processed  int
	Total      int
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("write batch %d failed after %d/%d items: %v",
		e.BatchIndex, e.Processed, e.Total, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
