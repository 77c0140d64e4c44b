package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clubkas/clubkas/internal/balance"
	"github.com/clubkas/clubkas/internal/cli"
	"github.com/clubkas/clubkas/internal/service"
)

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Compute the fiscal-period balance of the tracked account",
		Long: `Computes revenue, expense and net totals for the configured fiscal
period. Parents of ventilated splits are excluded; their children count
instead. The computation is read-only and safe to repeat.`,
		RunE: runBalance,
	}
}

func runBalance(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	period := cfg.Period()
	transactions, err := store.GetTransactions(ctx, service.TransactionFilter{
		StartDate: &period.StartDate,
		EndDate:   &period.EndDate,
	})
	if err != nil {
		return err
	}

	summary := balance.Compute(transactions, cfg.TrackedAccount, cfg.OpeningBalance)

	slog.Info(cli.FormatTitle(fmt.Sprintf("Balance %d, account %s", cfg.FiscalYear, cfg.TrackedAccount)))
	content := fmt.Sprintf(`Opening balance: %s
Revenue:         %s
Expenses:        %s
Net:             %s
Final balance:   %s

Included %d transactions; excluded %d split parents and %d on other accounts.`,
		cfg.OpeningBalance.StringFixed(2),
		summary.RevenueTotal.StringFixed(2),
		summary.ExpenseTotal.StringFixed(2),
		summary.NetBalance.StringFixed(2),
		summary.FinalBalance.StringFixed(2),
		summary.IncludedCount,
		summary.ExcludedParentCount,
		summary.ExcludedOtherAccountCount)

	cmd.Println(cli.RenderBox("Fiscal period balance", content))
	return nil
}
