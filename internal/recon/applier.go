package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/clubkas/clubkas/internal/common"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/plan"
)

// ExecutionResult reports how far an execution got. Processed counts
// actions in committed batches only; when FailedBatch is not -1 the
// batches before it are committed and the rest were never attempted.
type ExecutionResult struct {
	BackupIDs   []string
	Processed   int
	Total       int
	Batches     int
	FailedBatch int
}

// applyPlans executes plans sequentially in bounded batches. Deletions
// are snapshotted to a backup before the first destructive write of
// each plan.
func (o *Orchestrator) applyPlans(ctx context.Context, runID string, plans []*plan.Plan) (*ExecutionResult, error) {
	total := 0
	for _, p := range plans {
		total += len(p.Actions)
	}

	result := &ExecutionResult{
		Total:       total,
		FailedBatch: -1,
	}
	if total == 0 {
		return result, nil
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("applying repairs"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	batchIndex := 0
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			result.FailedBatch = batchIndex
			return result, &common.PersistenceError{
				Err: err, BatchIndex: batchIndex,
				Processed: result.Processed, Total: total,
			}
		}
		if err := o.backupDeletions(ctx, runID, p, result); err != nil {
			result.FailedBatch = batchIndex
			return result, err
		}

		for _, batch := range chunkActions(p.Actions, o.cfg.BatchSize) {
			if err := o.applyBatch(ctx, batch); err != nil {
				result.FailedBatch = batchIndex
				return result, &common.PersistenceError{
					Err: err, BatchIndex: batchIndex,
					Processed: result.Processed, Total: total,
				}
			}
			result.Processed += len(batch)
			result.Batches++
			batchIndex++
			_ = bar.Add(len(batch))
		}
	}
	_ = bar.Finish()

	return result, nil
}

// backupDeletions snapshots every transaction the plan will delete.
func (o *Orchestrator) backupDeletions(ctx context.Context, runID string, p *plan.Plan, result *ExecutionResult) error {
	deletions := p.Deletions()
	if len(deletions) == 0 {
		return nil
	}

	backup := &model.Backup{
		ID:      uuid.NewString(),
		TakenAt: time.Now().UTC(),
		Reason:  fmt.Sprintf("%s deletions, run %s", p.Operation, runID),
	}
	for _, action := range deletions {
		if action.Transaction != nil {
			backup.Transactions = append(backup.Transactions, *action.Transaction)
			continue
		}
		// The plan may have been rebuilt without payloads; fetch the
		// live row so the snapshot is complete.
		txn, err := o.store.GetTransactionByID(ctx, action.TransactionID)
		if err != nil {
			return fmt.Errorf("cannot snapshot %s before deletion: %w", action.TransactionID, err)
		}
		backup.Transactions = append(backup.Transactions, *txn)
	}

	if err := o.store.SaveBackup(ctx, backup); err != nil {
		return fmt.Errorf("failed to write pre-deletion backup: %w", err)
	}
	result.BackupIDs = append(result.BackupIDs, backup.ID)
	return nil
}

// applyBatch commits one batch. Plans group same-kind actions together,
// so a batch maps to a single atomic storage call.
func (o *Orchestrator) applyBatch(ctx context.Context, batch []plan.Action) error {
	var (
		creates []model.Transaction
		updates []model.Transaction
		deletes []string
	)
	for _, action := range batch {
		switch action.Kind {
		case plan.ActionCreate:
			creates = append(creates, *action.Transaction)
		case plan.ActionUpdate, plan.ActionPromote:
			updates = append(updates, *action.Transaction)
		case plan.ActionDelete:
			deletes = append(deletes, action.TransactionID)
		}
	}

	if len(creates) > 0 {
		if err := o.store.SaveTransactions(ctx, creates); err != nil {
			return err
		}
	}
	if len(updates) > 0 {
		if err := o.store.UpdateTransactions(ctx, updates); err != nil {
			return err
		}
	}
	if len(deletes) > 0 {
		if err := o.store.DeleteTransactions(ctx, deletes); err != nil {
			return err
		}
	}
	return nil
}

// chunkActions splits actions into batches of at most size.
func chunkActions(actions []plan.Action, size int) [][]plan.Action {
	if size <= 0 {
		size = 1
	}
	var batches [][]plan.Action
	for start := 0; start < len(actions); start += size {
		end := start + size
		if end > len(actions) {
			end = len(actions)
		}
		batches = append(batches, actions[start:end])
	}
	return batches
}
