// Package dedup detects duplicate bank-statement imports and plans
// their resolution.
package dedup

import (
	"fmt"
	"sort"

	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/normalize"
	"github.com/clubkas/clubkas/internal/plan"
)

// Group is a set of same-account transactions sharing a fingerprint.
// Groups of size one are not duplicates and are never returned.
type Group struct {
	Fingerprint   string
	AccountNumber string
	Transactions  []model.Transaction // sorted by sequence number, canonical first
}

// Canonical returns the member that survives resolution: the one with
// the lexicographically smallest sequence number.
func (g *Group) Canonical() model.Transaction {
	return g.Transactions[0]
}

// Extras returns the redundant members, the deletion candidates.
func (g *Group) Extras() []model.Transaction {
	return g.Transactions[1:]
}

// FindDuplicates groups transactions by (account, fingerprint) and
// returns the groups holding more than one member. A missing
// fingerprint is recomputed from the stored fields so that records
// imported before fingerprinting existed still participate.
func FindDuplicates(transactions []model.Transaction) []Group {
	type key struct {
		account     string
		fingerprint string
	}
	byKey := make(map[key][]model.Transaction)
	for _, txn := range transactions {
		fp := txn.DedupFingerprint
		if fp == "" {
			fp = normalize.TransactionFingerprint(&txn)
		}
		k := key{account: normalize.Account(txn.AccountNumber), fingerprint: fp}
		byKey[k] = append(byKey[k], txn)
	}

	var groups []Group
	for k, members := range byKey {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			return members[i].SequenceNumber < members[j].SequenceNumber
		})
		groups = append(groups, Group{
			Fingerprint:   k.fingerprint,
			AccountNumber: k.account,
			Transactions:  members,
		})
	}

	// Deterministic report order regardless of map iteration.
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].AccountNumber != groups[j].AccountNumber {
			return groups[i].AccountNumber < groups[j].AccountNumber
		}
		return groups[i].Fingerprint < groups[j].Fingerprint
	})
	return groups
}

// PlanResolution builds the deletion plan for the given duplicate
// groups: every non-canonical member is removed. The plan is the
// dry-run report; execution, backup included, is the orchestrator's
// job.
func PlanResolution(groups []Group) *plan.Plan {
	p := plan.New("dedup")
	for _, g := range groups {
		canonical := g.Canonical()
		for _, extra := range g.Extras() {
			extra := extra
			p.Add(plan.Action{
				Kind:           plan.ActionDelete,
				TransactionID:  extra.ID,
				SequenceNumber: extra.SequenceNumber,
				Reason:         fmt.Sprintf("duplicate of %s", canonical.SequenceNumber),
				Transaction:    &extra,
				AmountImpact:   extra.Amount.Neg(),
			})
		}
	}
	return p
}
