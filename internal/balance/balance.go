// Package balance computes fiscal-period account balances.
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/normalize"
)

// Summary is the result of one balance computation.
type Summary struct {
	RevenueTotal              decimal.Decimal
	ExpenseTotal              decimal.Decimal // positive magnitude
	NetBalance                decimal.Decimal
	FinalBalance              decimal.Decimal
	IncludedCount             int
	ExcludedParentCount       int
	ExcludedOtherAccountCount int
}

// Compute derives the period balance for the tracked account. A
// transaction contributes iff it is not a parent and its account equals
// the tracked account (whitespace-insensitive). Children contribute in
// place of their parent: once a transaction is split, its aggregate
// amount is replaced by the itemized child amounts. Orphan children
// also contribute; a dangling parent reference is a ledger defect the
// ventilation scan surfaces, not something the balance hides.
//
// The function is pure. It never mutates its input and performs no I/O,
// so audits can rerun it freely against the same data.
func Compute(transactions []model.Transaction, trackedAccount string, openingBalance decimal.Decimal) Summary {
	tracked := normalize.Account(trackedAccount)
	s := Summary{
		RevenueTotal: decimal.Zero,
		ExpenseTotal: decimal.Zero,
	}

	for _, txn := range transactions {
		if normalize.Account(txn.AccountNumber) != tracked {
			s.ExcludedOtherAccountCount++
			continue
		}
		if txn.IsParent {
			s.ExcludedParentCount++
			continue
		}
		s.IncludedCount++
		if txn.Amount.IsNegative() {
			s.ExpenseTotal = s.ExpenseTotal.Add(txn.Amount.Abs())
		} else {
			s.RevenueTotal = s.RevenueTotal.Add(txn.Amount)
		}
	}

	s.NetBalance = s.RevenueTotal.Sub(s.ExpenseTotal)
	s.FinalBalance = openingBalance.Add(s.NetBalance)
	return s
}

// ComputeForPeriod filters transactions to the fiscal period's date
// range before computing, using the period's tracked account and
// opening balance.
func ComputeForPeriod(transactions []model.Transaction, period model.FiscalPeriod) Summary {
	var scoped []model.Transaction
	for _, txn := range transactions {
		if period.Contains(txn.ExecutionDate) {
			scoped = append(scoped, txn)
		}
	}
	return Compute(scoped, period.TrackedAccountNumber, period.OpeningBalance)
}
