package recon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/config"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/recon"
	"github.com/clubkas/clubkas/internal/service"
	"github.com/clubkas/clubkas/internal/testutil"
	"github.com/clubkas/clubkas/internal/ventilation"
)

func testConfig() config.Config {
	return config.Config{
		ClubID:         "club-1",
		DatabasePath:   ":memory:",
		TrackedAccount: "BE26210016070629",
		FiscalYear:     2024,
		BatchSize:      config.DefaultBatchSize,
		OpeningBalance: decimal.NewFromInt(1000),
	}
}

// seedMessyLedger loads a ledger containing one duplicate pair and one
// orphaned child into the store.
func seedMessyLedger(t *testing.T, store service.Storage) {
	t.Helper()
	ctx := context.Background()
	date := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)

	original := testutil.Txn("t1", "2024-0001", "BE26210016070629", "-85.00", date)
	reimport := testutil.Txn("t2", "2024-0002", "BE26210016070629", "-85.00", date)
	original.DedupFingerprint = "202400010337"
	reimport.DedupFingerprint = "202400010337"

	orphan := testutil.Txn("t3", "2024-0003", "BE26210016070629", "-20.00", date)
	orphan.ParentTransactionID = "ghost"

	clean := testutil.Txn("t4", "2024-0004", "BE26210016070629", "600.00", date)

	require.NoError(t, store.SaveTransactions(ctx,
		[]model.Transaction{original, reimport, orphan, clean}))
}

func TestScan(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)

	orch := recon.New(store, testConfig())
	report, err := orch.Scan(context.Background(), recon.Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, recon.StateReportReady, orch.State())
	assert.Equal(t, 4, report.ScannedCount)
	assert.True(t, report.DryRun)
	assert.False(t, report.Clean())

	require.Len(t, report.DuplicateGroups, 1)
	group := report.DuplicateGroups[0]
	assert.Equal(t, "2024-0001", group.Canonical().SequenceNumber)
	require.Len(t, group.Extras(), 1)
	assert.Equal(t, "t2", group.Extras()[0].ID)

	require.Len(t, report.Orphans, 1)
	assert.Equal(t, "t3", report.Orphans[0].ID)

	// Removing the duplicate re-import restores 85.00 to the balance.
	require.NotNil(t, report.DedupPlan)
	assert.Equal(t, "85", report.DedupPlan.AmountImpact().String())

	// Both duplicates still count, so the balance is off by one -85.00.
	assert.Equal(t, "1410.00", report.Balance.FinalBalance.StringFixed(2))
}

func TestScan_DateOverride(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	orch := recon.New(store, testConfig())
	report, err := orch.Scan(context.Background(), recon.Options{StartDate: &from, DryRun: true})
	require.NoError(t, err)
	assert.Zero(t, report.ScannedCount)
	assert.True(t, report.Clean())
}

func TestExecute_RepairsLedger(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)
	ctx := context.Background()

	orch := recon.New(store, testConfig())
	report, err := orch.Scan(ctx, recon.Options{OrphanStrategy: ventilation.RepairPromote})
	require.NoError(t, err)

	result, err := orch.Execute(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, recon.StateCommitted, orch.State())
	assert.Equal(t, 2, result.Processed, "one deletion, one promotion")
	assert.Equal(t, result.Total, result.Processed)
	assert.Equal(t, -1, result.FailedBatch)

	// The duplicate is gone and the orphan is a normal transaction again.
	_, err = store.GetTransactionByID(ctx, "t2")
	assert.True(t, errors.Is(err, common.ErrNotFound))
	promoted, err := store.GetTransactionByID(ctx, "t3")
	require.NoError(t, err)
	assert.Empty(t, promoted.ParentTransactionID)

	// The deleted duplicate was snapshotted first.
	require.Len(t, result.BackupIDs, 1)
	backup, err := store.GetBackup(ctx, result.BackupIDs[0])
	require.NoError(t, err)
	require.Len(t, backup.Transactions, 1)
	assert.Equal(t, "t2", backup.Transactions[0].ID)

	// The run outcome is on record.
	reports, err := store.ListRunReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, string(recon.StateCommitted), reports[0].State)

	// A second scan finds a clean ledger with the corrected balance.
	rescan, err := recon.New(store, testConfig()).Scan(ctx, recon.Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, rescan.Clean())
	assert.Equal(t, "1495.00", rescan.Balance.FinalBalance.StringFixed(2))
}

func TestExecute_DeleteStrategy(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)
	ctx := context.Background()

	orch := recon.New(store, testConfig())
	report, err := orch.Scan(ctx, recon.Options{OrphanStrategy: ventilation.RepairDelete})
	require.NoError(t, err)

	result, err := orch.Execute(ctx, report)
	require.NoError(t, err)
	assert.Len(t, result.BackupIDs, 2, "dedup and orphan deletions snapshot separately")

	_, err = store.GetTransactionByID(ctx, "t3")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestExecute_RejectsDryRunReport(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)
	ctx := context.Background()

	orch := recon.New(store, testConfig())
	report, err := orch.Scan(ctx, recon.Options{DryRun: true})
	require.NoError(t, err)

	_, err = orch.Execute(ctx, report)
	require.Error(t, err)
	var verr *common.ValidationError
	assert.True(t, errors.As(err, &verr))

	// Nothing was touched.
	_, err = store.GetTransactionByID(ctx, "t2")
	assert.NoError(t, err)
}

func TestExecute_RequiresReportReadyState(t *testing.T) {
	store := testutil.SetupTestDB(t)
	orch := recon.New(store, testConfig())

	_, err := orch.Execute(context.Background(), &recon.Report{})
	require.Error(t, err)
	var verr *common.ValidationError
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, recon.StateIdle, orch.State())
}

func TestExecute_NothingToRepair(t *testing.T) {
	store := testutil.SetupTestDB(t)
	ctx := context.Background()
	clean := testutil.Txn("t1", "2024-0001", "BE26210016070629", "10.00",
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{clean}))

	orch := recon.New(store, testConfig())
	report, err := orch.Scan(ctx, recon.Options{})
	require.NoError(t, err)
	assert.True(t, report.Clean())

	result, err := orch.Execute(ctx, report)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Equal(t, recon.StateCommitted, orch.State())
}

// brokenDeletes wraps a real store and fails every delete, so runs stop
// mid-execution the way a locked database would make them.
type brokenDeletes struct {
	service.Storage
}

func (b *brokenDeletes) DeleteTransactions(ctx context.Context, ids []string) error {
	return errors.New("disk I/O error")
}

func TestExecute_FailedBatchReportsPosition(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)
	ctx := context.Background()

	orch := recon.New(&brokenDeletes{Storage: store}, testConfig())
	report, err := orch.Scan(ctx, recon.Options{})
	require.NoError(t, err)

	result, err := orch.Execute(ctx, report)
	require.Error(t, err)
	assert.Equal(t, recon.StateFailed, orch.State())

	var perr *common.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.BatchIndex)
	assert.Equal(t, 0, perr.Processed)
	assert.Equal(t, 2, perr.Total)

	require.NotNil(t, result)
	assert.Equal(t, 0, result.FailedBatch)
	assert.Zero(t, result.Processed)

	// The backup was written before the delete was attempted, and the
	// failed run is still on record for the operator.
	assert.Len(t, result.BackupIDs, 1)
	reports, listErr := store.ListRunReports(ctx)
	require.NoError(t, listErr)
	require.Len(t, reports, 1)
	assert.Equal(t, string(recon.StateFailed), reports[0].State)
}

func TestExecute_CancelledContext(t *testing.T) {
	store := testutil.SetupTestDB(t)
	seedMessyLedger(t, store)

	orch := recon.New(store, testConfig())
	report, err := orch.Scan(context.Background(), recon.Options{})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = orch.Execute(cancelled, report)
	require.Error(t, err)
	var perr *common.PersistenceError
	assert.True(t, errors.As(err, &perr))
	assert.Equal(t, recon.StateFailed, orch.State())
}
