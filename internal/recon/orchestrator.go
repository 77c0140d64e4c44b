// Package recon coordinates the reconciliation engine: it scans the
// ledger for duplicates, orphans and split inconsistencies, recomputes
// the period balance, and executes repair plans in bounded write
// batches.
package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clubkas/clubkas/internal/balance"
	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/config"
	"github.com/clubkas/clubkas/internal/dedup"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/plan"
	"github.com/clubkas/clubkas/internal/service"
	"github.com/clubkas/clubkas/internal/ventilation"
)

// State is the orchestrator's position in the run lifecycle.
type State string

// Run states. Dry runs terminate at StateReportReady; execution moves
// through StateExecuting to StateCommitted, or stops at StateFailed
// when a write batch does not commit.
const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateReportReady State = "report_ready"
	StateExecuting   State = "executing"
	StateCommitted   State = "committed"
	StateFailed      State = "failed"
)

// Options scopes a run.
type Options struct {
	StartDate      *time.Time
	EndDate        *time.Time
	OrphanStrategy ventilation.RepairStrategy
	DryRun         bool
}

// Report is the outcome of a scan: every issue found, its balance
// impact, and the plans that would repair it.
type Report struct {
	RunID           string
	StartedAt       time.Time
	State           State
	ScannedCount    int
	DuplicateGroups []dedup.Group
	Orphans         []model.Transaction
	Warnings        []common.InconsistencyWarning
	Balance         balance.Summary
	DedupPlan       *plan.Plan
	OrphanPlan      *plan.Plan
	Execution       *ExecutionResult
	DryRun          bool
}

// Plans returns the non-empty repair plans in execution order.
func (r *Report) Plans() []*plan.Plan {
	var plans []*plan.Plan
	for _, p := range []*plan.Plan{r.DedupPlan, r.OrphanPlan} {
		if p != nil && !p.IsEmpty() {
			plans = append(plans, p)
		}
	}
	return plans
}

// Clean reports whether the scan found nothing to repair.
func (r *Report) Clean() bool {
	return len(r.Plans()) == 0 && len(r.Warnings) == 0
}

// Orchestrator drives reconciliation runs against one ledger store.
type Orchestrator struct {
	store service.Storage
	cfg   config.Config
	state State
}

// New creates an orchestrator in the idle state.
func New(store service.Storage, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		store: store,
		cfg:   cfg,
		state: StateIdle,
	}
}

// State returns the current run state.
func (o *Orchestrator) State() State {
	return o.state
}

// Scan loads the transactions in scope and runs every detector:
// duplicate grouping, orphan detection, split consistency checks and
// the period balance. Nothing is mutated; the returned report carries
// the repair plans for Execute.
func (o *Orchestrator) Scan(ctx context.Context, opts Options) (*Report, error) {
	o.state = StateScanning

	period := o.cfg.Period()
	start, end := period.StartDate, period.EndDate
	if opts.StartDate != nil {
		start = *opts.StartDate
	}
	if opts.EndDate != nil {
		end = *opts.EndDate
	}

	transactions, err := o.store.GetTransactions(ctx, service.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		o.state = StateFailed
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	report := &Report{
		RunID:        uuid.NewString(),
		StartedAt:    time.Now().UTC(),
		ScannedCount: len(transactions),
		DryRun:       opts.DryRun,
	}

	report.DuplicateGroups = dedup.FindDuplicates(transactions)
	report.DedupPlan = dedup.PlanResolution(report.DuplicateGroups)

	report.Orphans = ventilation.FindOrphans(transactions)
	strategy := opts.OrphanStrategy
	if strategy == "" {
		strategy = ventilation.RepairPromote
	}
	report.OrphanPlan, err = ventilation.PlanRepair(report.Orphans, strategy)
	if err != nil {
		o.state = StateFailed
		return nil, err
	}

	report.Warnings = ventilation.ScanWarnings(transactions)
	report.Balance = balance.Compute(transactions, o.cfg.TrackedAccount, o.cfg.OpeningBalance)

	o.state = StateReportReady
	report.State = o.state

	slog.Info("Scan complete",
		"run_id", report.RunID,
		"scanned", report.ScannedCount,
		"duplicate_groups", len(report.DuplicateGroups),
		"orphans", len(report.Orphans),
		"warnings", len(report.Warnings))

	return report, nil
}

// Execute applies the report's repair plans. A dry-run report is
// rejected; callers re-scan with DryRun off once the operator has
// reviewed the plans. Committed batches stand even when a later batch
// fails; the execution result says exactly how far the run got.
func (o *Orchestrator) Execute(ctx context.Context, report *Report) (*ExecutionResult, error) {
	if report == nil {
		return nil, common.NewValidationError("no report to execute", nil)
	}
	if report.DryRun {
		return nil, common.NewValidationError("refusing to execute a dry-run report", nil)
	}
	if o.state != StateReportReady {
		return nil, common.NewValidationError(fmt.Sprintf("cannot execute from state %q", o.state), nil)
	}

	o.state = StateExecuting
	report.State = o.state

	result, err := o.applyPlans(ctx, report.RunID, report.Plans())
	report.Execution = result
	if err != nil {
		o.state = StateFailed
		report.State = o.state
		o.persistRunReport(ctx, report)
		return result, err
	}

	o.state = StateCommitted
	report.State = o.state
	o.persistRunReport(ctx, report)

	slog.Info("Run committed",
		"run_id", report.RunID,
		"processed", result.Processed,
		"total", result.Total,
		"batches", result.Batches)
	return result, nil
}

// persistRunReport stores the rendered report; failures are logged, not
// fatal, since the run itself already concluded.
func (o *Orchestrator) persistRunReport(ctx context.Context, report *Report) {
	runReport := &model.RunReport{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: time.Now().UTC(),
		State:      string(report.State),
		Report:     RenderText(report),
	}
	if err := o.store.SaveRunReport(ctx, runReport); err != nil {
		common.LogError(err, "failed to persist run report", common.Fields{"run_id": report.RunID})
	}
}
