package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clubkas/clubkas/internal/cli"
	"github.com/clubkas/clubkas/internal/recon"
	"github.com/clubkas/clubkas/internal/ventilation"
)

func dedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find and resolve duplicate imports",
		Long: `Groups transactions sharing a dedup fingerprint on the same account.
The member with the smallest sequence number is kept; the others are
deletion candidates. Without --execute this is a dry run: the plan is
printed and nothing is written.`,
		RunE: runDedupe,
	}

	cmd.Flags().Bool("execute", false, "apply the deletion plan (default: dry run)")
	_ = viper.BindPFlag("dedupe.execute", cmd.Flags().Lookup("execute"))

	return cmd
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	execute := viper.GetBool("dedupe.execute")

	store, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	orchestrator := recon.New(store, cfg)
	report, err := orchestrator.Scan(ctx, recon.Options{
		DryRun: !execute,
		// Orphan repair is not in scope for this command; an empty plan
		// comes back when the ledger has no orphans anyway.
		OrphanStrategy: ventilation.RepairPromote,
	})
	if err != nil {
		return err
	}

	// Strip the non-dedup findings from the printed plan set.
	report.OrphanPlan = nil
	report.Orphans = nil

	slog.Info(cli.FormatTitle("Duplicate scan"))
	cmd.Println(recon.RenderStyled(report))

	if !execute {
		return nil
	}
	if report.DedupPlan == nil || report.DedupPlan.IsEmpty() {
		slog.Info(cli.FormatSuccess("No duplicates to resolve"))
		return nil
	}

	result, err := orchestrator.Execute(ctx, report)
	if err != nil {
		return err
	}
	slog.Info(cli.FormatSuccess("Duplicates resolved"),
		"deleted", result.Processed, "backups", len(result.BackupIDs))
	return nil
}
