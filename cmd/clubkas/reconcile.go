package main

import (
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clubkas/clubkas/internal/cli"
	"github.com/clubkas/clubkas/internal/recon"
	"github.com/clubkas/clubkas/internal/ventilation"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run a full reconciliation pass",
		Long: `Scans the ledger for duplicate imports, orphan children and
inconsistent split groups, recomputes the period balance, and prints a
report of every issue with its amount impact. With --execute the repair
plans are applied in bounded batches; deletions are snapshotted to a
backup first. A batch that fails halts the run, committed batches
stand, and the report states exactly how far execution got.`,
		RunE: runReconcile,
	}

	cmd.Flags().Bool("execute", false, "apply repair plans (default: dry run)")
	cmd.Flags().String("orphans", string(ventilation.RepairPromote), "orphan strategy (promoteToNormal, delete)")
	cmd.Flags().String("from", "", "scope start date (2006-01-02, default: fiscal year start)")
	cmd.Flags().String("to", "", "scope end date (2006-01-02, default: fiscal year end)")
	_ = viper.BindPFlag("reconcile.execute", cmd.Flags().Lookup("execute"))
	_ = viper.BindPFlag("reconcile.orphans", cmd.Flags().Lookup("orphans"))
	_ = viper.BindPFlag("reconcile.from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("reconcile.to", cmd.Flags().Lookup("to"))

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	execute := viper.GetBool("reconcile.execute")

	opts := recon.Options{
		DryRun:         !execute,
		OrphanStrategy: ventilation.RepairStrategy(viper.GetString("reconcile.orphans")),
	}
	if from := viper.GetString("reconcile.from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return err
		}
		opts.StartDate = &t
	}
	if to := viper.GetString("reconcile.to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return err
		}
		opts.EndDate = &t
	}

	store, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	orchestrator := recon.New(store, cfg)
	report, err := orchestrator.Scan(ctx, opts)
	if err != nil {
		return err
	}

	cmd.Println(recon.RenderStyled(report))

	if !execute || report.Clean() {
		return nil
	}

	result, execErr := orchestrator.Execute(ctx, report)
	if result != nil {
		cmd.Printf("Applied %d/%d actions in %d batches\n",
			result.Processed, result.Total, result.Batches)
		for _, id := range result.BackupIDs {
			cmd.Printf("Backup written: %s\n", id)
		}
	}
	if execErr != nil {
		slog.Error(cli.FormatError("Reconciliation halted"), "error", execErr)
		return execErr
	}

	slog.Info(cli.FormatSuccess("Reconciliation committed"), "run_id", report.RunID)
	return nil
}
