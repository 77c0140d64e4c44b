// Package plan models the intended effects of a mutating ledger
// operation. Every repair first computes a Plan; a Plan can be rendered
// as a dry-run report or handed to the orchestrator for execution, so
// the same computation backs both modes.
package plan

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubkas/clubkas/internal/model"
)

// ActionKind enumerates the mutations a plan can carry.
type ActionKind string

const (
	// ActionDelete removes a transaction from the ledger.
	ActionDelete ActionKind = "delete"
	// ActionPromote clears a child's parent reference, making it a
	// normal transaction again.
	ActionPromote ActionKind = "promote"
	// ActionUpdate rewrites an existing transaction.
	ActionUpdate ActionKind = "update"
	// ActionCreate inserts a new transaction.
	ActionCreate ActionKind = "create"
)

// Action is a single intended mutation with its balance impact.
type Action struct {
	Kind           ActionKind
	TransactionID  string
	SequenceNumber string
	Reason         string
	Transaction    *model.Transaction // payload for create and update
	AmountImpact   decimal.Decimal    // signed effect on the ledger total
}

// Plan is an ordered set of intended mutations produced by one
// operation.
type Plan struct {
	CreatedAt time.Time
	Operation string
	Actions   []Action
}

// New creates an empty plan for the named operation.
func New(operation string) *Plan {
	return &Plan{Operation: operation, CreatedAt: time.Now().UTC()}
}

// Add appends an action.
func (p *Plan) Add(a Action) {
	p.Actions = append(p.Actions, a)
}

// IsEmpty reports whether the plan carries no mutations.
func (p *Plan) IsEmpty() bool {
	return len(p.Actions) == 0
}

// AmountImpact sums the signed balance effect of all actions.
func (p *Plan) AmountImpact() decimal.Decimal {
	total := decimal.Zero
	for _, a := range p.Actions {
		total = total.Add(a.AmountImpact)
	}
	return total
}

// Counts tallies actions by kind.
func (p *Plan) Counts() map[ActionKind]int {
	counts := make(map[ActionKind]int)
	for _, a := range p.Actions {
		counts[a.Kind]++
	}
	return counts
}

// Deletions returns the transactions the plan will remove. The slice
// feeds the pre-deletion backup.
func (p *Plan) Deletions() []Action {
	var out []Action
	for _, a := range p.Actions {
		if a.Kind == ActionDelete {
			out = append(out, a)
		}
	}
	return out
}
