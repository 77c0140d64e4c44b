package balance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/testutil"
)

var testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// ledgerFixture is the reference scenario: a split parent whose
// aggregate is replaced by its two children, plus two normal entries.
func ledgerFixture() []model.Transaction {
	parent := testutil.Txn("p1", "2024-0003", "A", "500.00", testDate)
	parent.IsParent = true
	parent.ChildCount = 2

	childA := testutil.Txn("c1", "2024-0004", "A", "200.00", testDate)
	childA.ParentTransactionID = "p1"
	childB := testutil.Txn("c2", "2024-0005", "A", "300.00", testDate)
	childB.ParentTransactionID = "p1"

	return []model.Transaction{
		testutil.Txn("t1", "2024-0001", "A", "100.00", testDate),
		testutil.Txn("t2", "2024-0002", "A", "-50.00", testDate),
		parent,
		childA,
		childB,
	}
}

func TestCompute(t *testing.T) {
	opening := decimal.NewFromInt(1000)
	summary := Compute(ledgerFixture(), "A", opening)

	assert.Equal(t, "600.00", summary.RevenueTotal.StringFixed(2))
	assert.Equal(t, "50.00", summary.ExpenseTotal.StringFixed(2))
	assert.Equal(t, "550.00", summary.NetBalance.StringFixed(2))
	assert.Equal(t, "1550.00", summary.FinalBalance.StringFixed(2))
	assert.Equal(t, 4, summary.IncludedCount)
	assert.Equal(t, 1, summary.ExcludedParentCount)
	assert.Equal(t, 0, summary.ExcludedOtherAccountCount)
}

func TestCompute_OtherAccountsExcluded(t *testing.T) {
	transactions := append(ledgerFixture(),
		testutil.Txn("x1", "2024-0006", "B", "999.00", testDate))

	summary := Compute(transactions, "A", decimal.Zero)
	assert.Equal(t, "600.00", summary.RevenueTotal.StringFixed(2))
	assert.Equal(t, 1, summary.ExcludedOtherAccountCount)
}

func TestCompute_AccountComparisonIgnoresWhitespace(t *testing.T) {
	transactions := []model.Transaction{
		testutil.Txn("t1", "2024-0001", "BE26 2100 1607 0629", "100.00", testDate),
	}
	summary := Compute(transactions, "BE26210016070629", decimal.Zero)
	assert.Equal(t, 1, summary.IncludedCount)
	assert.Equal(t, "100.00", summary.FinalBalance.StringFixed(2))
}

func TestCompute_OrphansContribute(t *testing.T) {
	// An orphan child still counts: the defect is surfaced by the
	// ventilation scan, not hidden by the balance.
	orphan := testutil.Txn("c9", "2024-0009", "A", "25.00", testDate)
	orphan.ParentTransactionID = "ghost"

	summary := Compute([]model.Transaction{orphan}, "A", decimal.Zero)
	assert.Equal(t, 1, summary.IncludedCount)
	assert.Equal(t, "25.00", summary.RevenueTotal.StringFixed(2))
}

func TestCompute_IsPure(t *testing.T) {
	transactions := ledgerFixture()
	opening := decimal.NewFromInt(1000)

	first := Compute(transactions, "A", opening)
	second := Compute(transactions, "A", opening)
	assert.Equal(t, first, second, "identical input must give identical output")

	// The input set is untouched.
	require.Len(t, transactions, 5)
	assert.Equal(t, "500.00", transactions[2].Amount.StringFixed(2))
	assert.True(t, transactions[2].IsParent)
}

func TestComputeForPeriod(t *testing.T) {
	period := model.FiscalPeriod{
		StartDate:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:              time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		TrackedAccountNumber: "A",
		OpeningBalance:       decimal.NewFromInt(1000),
	}

	outside := testutil.Txn("z1", "2023-0099", "A", "77.00", time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC))
	transactions := append(ledgerFixture(), outside)

	summary := ComputeForPeriod(transactions, period)
	assert.Equal(t, "1550.00", summary.FinalBalance.StringFixed(2))
	assert.Equal(t, 4, summary.IncludedCount)
}

func TestCompute_EmptyLedger(t *testing.T) {
	summary := Compute(nil, "A", decimal.NewFromInt(1000))
	assert.Equal(t, "1000.00", summary.FinalBalance.StringFixed(2))
	assert.Zero(t, summary.IncludedCount)
}
