package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/service"
	"github.com/clubkas/clubkas/internal/testutil"
)

var testDate = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func TestSaveAndGetTransactions(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.Txn("t1", "2024-0001", "BE26210016070629", "42.50", testDate)
	txn.CounterpartyName = "ACME Corp"
	txn.Communication = "invoice 1337"

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	got, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "2024-0001", got.SequenceNumber)
	assert.True(t, got.Amount.Equal(txn.Amount))
	assert.Equal(t, "ACME Corp", got.CounterpartyName)
	assert.False(t, got.IsParent)
	assert.Empty(t, got.ParentTransactionID)

	bySeq, err := store.GetTransactionBySequence(ctx, "2024-0001")
	require.NoError(t, err)
	assert.Equal(t, "t1", bySeq.ID)
}

func TestSaveTransactions_ReimportIgnored(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.Txn("t1", "2024-0001", "BE26210016070629", "42.50", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	// Same sequence number under a fresh ledger ID: a re-ingested
	// statement line. Must be a no-op.
	again := testutil.Txn(uuid.NewString(), "2024-0001", "BE26210016070629", "42.50", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{again}))

	all, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, "t1", all[0].ID)
}

func TestGetTransactions_Filter(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	jan := testutil.Txn("t1", "2024-0001", "A", "10.00", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	jun := testutil.Txn("t2", "2024-0002", "A", "20.00", time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))
	dec := testutil.Txn("t3", "2024-0003", "B", "30.00", time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{jan, jun, dec}))

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := store.GetTransactions(ctx, service.TransactionFilter{StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t2", got[0].ID, "results ordered by execution date")

	byAccount, err := store.GetTransactions(ctx, service.TransactionFilter{AccountNumber: "B"})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "t3", byAccount[0].ID)
}

func TestGetTransactionByID_NotFound(t *testing.T) {
	store := testutil.SetupTestDB(t)
	_, err := store.GetTransactionByID(context.Background(), "nope")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestUpdateTransactions(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.Txn("t1", "2024-0001", "A", "100.00", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	txn.IsParent = true
	txn.ChildCount = 2
	require.NoError(t, store.UpdateTransactions(ctx, []model.Transaction{txn}))

	got, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.IsParent)
	assert.Equal(t, 2, got.ChildCount)
}

func TestUpdateTransactions_MissingRowFailsAtomically(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	existing := testutil.Txn("t1", "2024-0001", "A", "100.00", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{existing}))

	existing.Category = "bar"
	missing := testutil.Txn("t2", "2024-0002", "A", "50.00", testDate)

	err := store.UpdateTransactions(ctx, []model.Transaction{existing, missing})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	// The batch rolled back: t1 keeps its old category.
	got, getErr := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, getErr)
	assert.Empty(t, got.Category)
}

func TestDeleteTransactions(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	a := testutil.Txn("t1", "2024-0001", "A", "10.00", testDate)
	b := testutil.Txn("t2", "2024-0002", "A", "20.00", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{a, b}))

	require.NoError(t, store.DeleteTransactions(ctx, []string{"t1"}))

	all, err := store.GetTransactions(ctx, service.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "t2", all[0].ID)
}

func TestSaveSplit(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	parent := testutil.Txn("p1", "2024-0001", "A", "100.00", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{parent}))

	parent.IsParent = true
	parent.ChildCount = 2
	children := []model.Transaction{
		testutil.Txn("c1", "2024-0001-V1", "A", "60.00", testDate),
		testutil.Txn("c2", "2024-0001-V2", "A", "40.00", testDate),
	}
	for i := range children {
		children[i].ParentTransactionID = "p1"
	}

	require.NoError(t, store.SaveSplit(ctx, parent, children))

	got, err := store.GetTransactionByID(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.IsParent)
	assert.Equal(t, 2, got.ChildCount)

	child, err := store.GetTransactionByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "p1", child.ParentTransactionID)
}

func TestSaveSplit_MissingParentLeavesNoChildren(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	parent := testutil.Txn("ghost", "2024-0001", "A", "100.00", testDate)
	parent.IsParent = true
	parent.ChildCount = 1
	child := testutil.Txn("c1", "2024-0001-V1", "A", "100.00", testDate)
	child.ParentTransactionID = "ghost"

	err := store.SaveSplit(ctx, parent, []model.Transaction{child})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	// The whole split rolled back: no orphan child was committed.
	_, err = store.GetTransactionByID(ctx, "c1")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestAppendEntityMatches(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.Txn("t1", "2024-0001", "A", "25.00", testDate)
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{txn}))

	first := model.EntityMatch{
		EntityType: model.EntityInscription,
		EntityID:   "i1",
		EntityName: "Jean Dupont",
		Confidence: 100,
		MatchedAt:  testDate,
		MatchedBy:  model.MatchAuto,
	}
	require.NoError(t, store.AppendEntityMatches(ctx, "t1", []model.EntityMatch{first}))

	second := model.EntityMatch{
		EntityType: model.EntityExpenseClaim,
		EntityID:   "e1",
		EntityName: "Jean Dupont",
		Confidence: 90,
		MatchedAt:  testDate,
		MatchedBy:  model.MatchManual,
	}
	require.NoError(t, store.AppendEntityMatches(ctx, "t1", []model.EntityMatch{second}))

	got, err := store.GetTransactionByID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got.MatchedEntities, 2)
	assert.Equal(t, "i1", got.MatchedEntities[0].EntityID)
	assert.Equal(t, model.MatchManual, got.MatchedEntities[1].MatchedBy)
}

func TestBackupRoundTrip(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.Txn("t1", "2024-0001", "A", "42.50", testDate)
	txn.CounterpartyName = "ACME Corp"

	backup := &model.Backup{
		ID:           uuid.NewString(),
		TakenAt:      testDate,
		Reason:       "dedup deletions, run r1",
		Transactions: []model.Transaction{txn},
	}
	require.NoError(t, store.SaveBackup(ctx, backup))

	got, err := store.GetBackup(ctx, backup.ID)
	require.NoError(t, err)
	assert.Equal(t, backup.Reason, got.Reason)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "t1", got.Transactions[0].ID)
	assert.True(t, got.Transactions[0].Amount.Equal(txn.Amount), "amounts must round-trip exactly")

	list, err := store.ListBackups(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Transactions, "list does not hydrate payloads")
}

func TestRunReports(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	report := &model.RunReport{
		ID:         uuid.NewString(),
		StartedAt:  testDate,
		FinishedAt: testDate.Add(time.Minute),
		State:      "committed",
		Report:     "Reconciliation run ...",
	}
	require.NoError(t, store.SaveRunReport(ctx, report))

	list, err := store.ListRunReports(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "committed", list[0].State)
}

func TestValidationRejectsBadInput(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()

	assert.Error(t, store.SaveTransactions(ctx, nil))
	assert.Error(t, store.SaveTransactions(ctx, []model.Transaction{}))

	noID := testutil.Txn("", "2024-0001", "A", "10.00", testDate)
	assert.Error(t, store.SaveTransactions(ctx, []model.Transaction{noID}))

	conflicted := testutil.Txn("t1", "2024-0001", "A", "10.00", testDate)
	conflicted.IsParent = true
	conflicted.ParentTransactionID = "p1"
	assert.Error(t, store.SaveTransactions(ctx, []model.Transaction{conflicted}))

	assert.Error(t, store.DeleteTransactions(ctx, nil))
	_, err := store.GetTransactionByID(ctx, " ")
	assert.Error(t, err)
}
