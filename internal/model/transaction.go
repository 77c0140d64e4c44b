// Package model defines the core domain types for the club ledger.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchProvenance records how an entity match was established.
type MatchProvenance string

const (
	// MatchManual indicates an operator confirmed the match.
	MatchManual MatchProvenance = "manual"
	// MatchAuto indicates the matcher established the link without review.
	MatchAuto MatchProvenance = "auto"
)

// EntityType identifies the kind of financial entity a transaction links to.
type EntityType string

const (
	// EntityInscription links a transaction to an event registration.
	EntityInscription EntityType = "inscription"
	// EntityExpenseClaim links a transaction to a reimbursement claim.
	EntityExpenseClaim EntityType = "expense_claim"
)

// AmountTolerance is the maximum absolute difference under which two
// amounts are considered equal. Bank statements carry two decimals, so
// anything beyond a single cent is a real discrepancy.
var AmountTolerance = decimal.NewFromFloat(0.01)

// Transaction is a single ledger entry imported from a bank statement
// or created by splitting a parent into ventilated children.
type Transaction struct {
	ExecutionDate       time.Time
	ValueDate           time.Time
	ID                  string
	SequenceNumber      string // unique business identifier from the bank statement
	AccountNumber       string
	CounterpartyName    string
	Communication       string
	Category            string // bookkeeping category, set on ventilated children
	ParentTransactionID string // set on ventilation children, empty otherwise
	DedupFingerprint    string
	Amount              decimal.Decimal // signed: revenue > 0, expense < 0
	MatchedEntities     []EntityMatch
	ChildCount          int // declared number of children, set when a split is created
	IsParent            bool
}

// EntityMatch is a candidate link between a transaction and an external
// financial entity, with confidence and provenance.
type EntityMatch struct {
	MatchedAt  time.Time       `json:"matched_at"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	MatchedBy  MatchProvenance `json:"matched_by"`
	Confidence int             `json:"confidence"` // 0..100
}

// IsChild reports whether the transaction is a ventilation child.
func (t *Transaction) IsChild() bool {
	return t.ParentTransactionID != ""
}

// RoleConsistent reports whether the parent/child flags are mutually
// exclusive. A transaction is a parent, a child, or neither; never both.
func (t *Transaction) RoleConsistent() bool {
	return !(t.IsParent && t.ParentTransactionID != "")
}

// AmountsEqual reports whether two amounts agree within AmountTolerance.
func AmountsEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AmountTolerance)
}

// FiscalPeriod is the read-only bookkeeping period configuration the
// balance calculator works against.
type FiscalPeriod struct {
	StartDate            time.Time
	EndDate              time.Time
	TrackedAccountNumber string
	OpeningBalance       decimal.Decimal
}

// Contains reports whether a date falls inside the period (inclusive).
func (p FiscalPeriod) Contains(d time.Time) bool {
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Inscription is an event registration candidate for payment matching.
type Inscription struct {
	ID         string
	MemberName string
	Price      decimal.Decimal
	Paid       bool
}

// ExpenseClaim is a reimbursement request candidate for payment matching.
type ExpenseClaim struct {
	ID       string
	Claimant string
	Amount   decimal.Decimal
}
