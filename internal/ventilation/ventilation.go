// Package ventilation manages split transactions: creating parent/child
// groups, detecting orphaned children and planning their repair.
package ventilation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/plan"
)

// ChildSpec describes one ventilated sub-amount of a split.
type ChildSpec struct {
	Category string
	Memo     string
	Amount   decimal.Decimal
}

// RepairStrategy selects how orphaned children are repaired.
type RepairStrategy string

const (
	// RepairDelete removes the orphan from the ledger.
	RepairDelete RepairStrategy = "delete"
	// RepairPromote clears the dangling parent reference so the orphan
	// counts as a normal transaction again.
	RepairPromote RepairStrategy = "promoteToNormal"
)

// CreateSplit turns a normal transaction into a parent and creates one
// child per spec. It fails with a ValidationError, without touching the
// parent, when the child amounts do not sum to the parent amount within
// tolerance, or when the transaction already has a ventilation role.
func CreateSplit(parent *model.Transaction, specs []ChildSpec) ([]model.Transaction, error) {
	if parent == nil {
		return nil, common.NewValidationError("parent is nil", nil)
	}
	if len(specs) == 0 {
		return nil, common.NewValidationError("split needs at least one child", nil)
	}
	if parent.IsParent {
		return nil, common.NewValidationError(
			fmt.Sprintf("transaction %s is already split", parent.SequenceNumber), nil)
	}
	if parent.IsChild() {
		return nil, common.NewValidationError(
			fmt.Sprintf("transaction %s is itself a ventilation child", parent.SequenceNumber), nil)
	}

	total := decimal.Zero
	for _, spec := range specs {
		total = total.Add(spec.Amount)
	}
	if !model.AmountsEqual(total, parent.Amount) {
		return nil, common.NewValidationError(
			fmt.Sprintf("child amounts sum to %s, parent amount is %s (delta %s)",
				total.StringFixed(2), parent.Amount.StringFixed(2),
				total.Sub(parent.Amount).Abs().StringFixed(2)), nil)
	}

	children := make([]model.Transaction, 0, len(specs))
	for i, spec := range specs {
		children = append(children, model.Transaction{
			ID:                  uuid.NewString(),
			SequenceNumber:      fmt.Sprintf("%s-V%d", parent.SequenceNumber, i+1),
			AccountNumber:       parent.AccountNumber,
			ExecutionDate:       parent.ExecutionDate,
			ValueDate:           parent.ValueDate,
			Amount:              spec.Amount,
			CounterpartyName:    parent.CounterpartyName,
			Communication:       spec.Memo,
			Category:            spec.Category,
			ParentTransactionID: parent.ID,
		})
	}

	parent.IsParent = true
	parent.ChildCount = len(children)
	return children, nil
}

// BuildChildrenIndex groups ventilation children by parent ID. The
// index is built once per run from the flat transaction list; nothing
// resolves parents through ad hoc lookups.
func BuildChildrenIndex(transactions []model.Transaction) map[string][]model.Transaction {
	index := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if txn.IsChild() {
			index[txn.ParentTransactionID] = append(index[txn.ParentTransactionID], txn)
		}
	}
	return index
}

// FindOrphans returns the children whose parent reference does not
// resolve to an existing parent transaction within the given set. Each
// orphan appears exactly once, in input order.
func FindOrphans(transactions []model.Transaction) []model.Transaction {
	parents := make(map[string]bool)
	for _, txn := range transactions {
		if txn.IsParent {
			parents[txn.ID] = true
		}
	}

	var orphans []model.Transaction
	for _, txn := range transactions {
		if txn.IsChild() && !parents[txn.ParentTransactionID] {
			orphans = append(orphans, txn)
		}
	}
	return orphans
}

// PlanRepair builds the repair plan for a set of orphans under the
// chosen strategy. Applying the same plan twice is harmless: deleted
// orphans are gone, promoted orphans no longer carry a parent
// reference, so a second scan finds nothing to repair.
func PlanRepair(orphans []model.Transaction, strategy RepairStrategy) (*plan.Plan, error) {
	p := plan.New("orphan-repair")
	for _, orphan := range orphans {
		orphan := orphan
		switch strategy {
		case RepairDelete:
			p.Add(plan.Action{
				Kind:           plan.ActionDelete,
				TransactionID:  orphan.ID,
				SequenceNumber: orphan.SequenceNumber,
				Reason:         fmt.Sprintf("orphan child of missing parent %s", orphan.ParentTransactionID),
				Transaction:    &orphan,
				AmountImpact:   orphan.Amount.Neg(),
			})
		case RepairPromote:
			promoted := orphan
			promoted.ParentTransactionID = ""
			p.Add(plan.Action{
				Kind:           plan.ActionPromote,
				TransactionID:  orphan.ID,
				SequenceNumber: orphan.SequenceNumber,
				Reason:         fmt.Sprintf("promote orphan child of missing parent %s", orphan.ParentTransactionID),
				Transaction:    &promoted,
				AmountImpact:   decimal.Zero,
			})
		default:
			return nil, common.NewValidationError(fmt.Sprintf("unknown repair strategy %q", strategy), nil)
		}
	}
	return p, nil
}

// Consistency is the outcome of validating one parent against its
// children. It flags mismatches for the orchestrator to report; nothing
// here corrects anything.
type Consistency struct {
	ParentID      string
	DeclaredCount int
	ActualCount   int
	AmountDelta   decimal.Decimal // sum(children) - parent amount
	Consistent    bool
}

// ValidateGroupConsistency checks one split group: the declared child
// count must match the actual one, and the children must sum to the
// parent amount within tolerance.
func ValidateGroupConsistency(parent model.Transaction, children []model.Transaction) Consistency {
	total := decimal.Zero
	for _, child := range children {
		total = total.Add(child.Amount)
	}
	c := Consistency{
		ParentID:      parent.ID,
		DeclaredCount: parent.ChildCount,
		ActualCount:   len(children),
		AmountDelta:   total.Sub(parent.Amount),
	}
	c.Consistent = c.DeclaredCount == c.ActualCount && model.AmountsEqual(total, parent.Amount)
	return c
}

// ScanWarnings runs the non-fatal consistency checks across a full
// transaction set: role conflicts, orphans and inconsistent split
// groups, as InconsistencyWarnings for the report.
func ScanWarnings(transactions []model.Transaction) []common.InconsistencyWarning {
	var warnings []common.InconsistencyWarning

	for _, txn := range transactions {
		if !txn.RoleConsistent() {
			warnings = append(warnings, common.InconsistencyWarning{
				Kind:          common.WarnRoleConflict,
				TransactionID: txn.ID,
				Detail:        fmt.Sprintf("transaction %s is flagged parent but references parent %s", txn.SequenceNumber, txn.ParentTransactionID),
			})
		}
	}

	for _, orphan := range FindOrphans(transactions) {
		warnings = append(warnings, common.InconsistencyWarning{
			Kind:          common.WarnOrphanChild,
			TransactionID: orphan.ID,
			Detail:        fmt.Sprintf("child %s references missing parent %s", orphan.SequenceNumber, orphan.ParentTransactionID),
		})
	}

	index := BuildChildrenIndex(transactions)
	for _, txn := range transactions {
		if !txn.IsParent {
			continue
		}
		c := ValidateGroupConsistency(txn, index[txn.ID])
		if c.Consistent {
			continue
		}
		if c.DeclaredCount != c.ActualCount {
			warnings = append(warnings, common.InconsistencyWarning{
				Kind:          common.WarnChildCountMismatch,
				TransactionID: txn.ID,
				Detail:        fmt.Sprintf("parent %s declares %d children, found %d", txn.SequenceNumber, c.DeclaredCount, c.ActualCount),
			})
		}
		if !c.AmountDelta.Abs().LessThanOrEqual(model.AmountTolerance) {
			warnings = append(warnings, common.InconsistencyWarning{
				Kind:          common.WarnAmountMismatch,
				TransactionID: txn.ID,
				Detail:        fmt.Sprintf("children of %s sum to a delta of %s", txn.SequenceNumber, c.AmountDelta.StringFixed(2)),
			})
		}
	}

	return warnings
}
