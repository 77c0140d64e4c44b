package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clubkas/clubkas/internal/cli"
	"github.com/clubkas/clubkas/internal/recon"
	"github.com/clubkas/clubkas/internal/service"
	"github.com/clubkas/clubkas/internal/ventilation"
)

func splitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "splits",
		Short: "Manage ventilated (split) transactions",
	}

	cmd.AddCommand(splitsCreateCmd())
	cmd.AddCommand(splitsOrphansCmd())
	cmd.AddCommand(splitsRepairCmd())
	cmd.AddCommand(splitsValidateCmd())
	return cmd
}

func splitsCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <sequence-number>",
		Short: "Split a transaction into ventilated children",
		Long: `Splits one transaction into categorized children. Each --child takes
"amount:category[:memo]". The child amounts must sum to the parent
amount; otherwise the split is rejected and nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: runSplitsCreate,
	}

	cmd.Flags().StringArray("child", nil, `child spec "amount:category[:memo]" (repeatable)`)
	return cmd
}

func runSplitsCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rawSpecs, err := cmd.Flags().GetStringArray("child")
	if err != nil {
		return err
	}
	specs, err := parseChildSpecs(rawSpecs)
	if err != nil {
		return err
	}

	store, _, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	parent, err := store.GetTransactionBySequence(ctx, args[0])
	if err != nil {
		return fmt.Errorf("parent %s: %w", args[0], err)
	}

	children, err := ventilation.CreateSplit(parent, specs)
	if err != nil {
		return err
	}

	if err := store.SaveSplit(ctx, *parent, children); err != nil {
		return err
	}

	slog.Info(cli.FormatSuccess("Split created"),
		"parent", parent.SequenceNumber, "children", len(children))
	return nil
}

func parseChildSpecs(raw []string) ([]ventilation.ChildSpec, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one --child is required")
	}
	specs := make([]ventilation.ChildSpec, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid child spec %q, want amount:category[:memo]", r)
		}
		amount, err := decimal.NewFromString(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid child amount %q: %w", parts[0], err)
		}
		spec := ventilation.ChildSpec{Amount: amount, Category: parts[1]}
		if len(parts) == 3 {
			spec.Memo = parts[2]
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func splitsOrphansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List children whose parent no longer exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			transactions, err := store.GetTransactions(ctx, service.TransactionFilter{})
			if err != nil {
				return err
			}

			orphans := ventilation.FindOrphans(transactions)
			if len(orphans) == 0 {
				slog.Info(cli.FormatSuccess("No orphan children"))
				return nil
			}
			for _, orphan := range orphans {
				cmd.Printf("%s\t%s\tparent %s missing\n",
					orphan.SequenceNumber, orphan.Amount.StringFixed(2), orphan.ParentTransactionID)
			}
			return nil
		},
	}
}

func splitsRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Repair orphan children",
		Long: `Repairs orphans with the chosen strategy: "promoteToNormal" clears the
dangling parent reference, "delete" removes the orphan. Deletions are
snapshotted to a backup first. Dry run unless --execute is given.`,
		RunE: runSplitsRepair,
	}

	cmd.Flags().String("strategy", string(ventilation.RepairPromote), "repair strategy (promoteToNormal, delete)")
	cmd.Flags().Bool("execute", false, "apply the repair plan (default: dry run)")
	_ = viper.BindPFlag("splits.repair.strategy", cmd.Flags().Lookup("strategy"))
	_ = viper.BindPFlag("splits.repair.execute", cmd.Flags().Lookup("execute"))

	return cmd
}

func runSplitsRepair(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	execute := viper.GetBool("splits.repair.execute")
	strategy := ventilation.RepairStrategy(viper.GetString("splits.repair.strategy"))

	store, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	orchestrator := recon.New(store, cfg)
	report, err := orchestrator.Scan(ctx, recon.Options{
		DryRun:         !execute,
		OrphanStrategy: strategy,
	})
	if err != nil {
		return err
	}

	// This command only acts on orphans.
	report.DedupPlan = nil
	report.DuplicateGroups = nil

	slog.Info(cli.FormatTitle("Orphan repair"))
	cmd.Println(recon.RenderStyled(report))

	if !execute {
		return nil
	}
	if report.OrphanPlan == nil || report.OrphanPlan.IsEmpty() {
		slog.Info(cli.FormatSuccess("No orphans to repair"))
		return nil
	}

	result, err := orchestrator.Execute(ctx, report)
	if err != nil {
		return err
	}
	slog.Info(cli.FormatSuccess("Orphans repaired"),
		"repaired", result.Processed, "strategy", string(strategy))
	return nil
}

func splitsValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check split-group consistency without mutating",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			transactions, err := store.GetTransactions(ctx, service.TransactionFilter{})
			if err != nil {
				return err
			}

			warnings := ventilation.ScanWarnings(transactions)
			if len(warnings) == 0 {
				slog.Info(cli.FormatSuccess("All split groups are consistent"))
				return nil
			}
			for _, w := range warnings {
				cmd.Println(cli.FormatWarning(w.String()))
			}
			return nil
		},
	}
}
