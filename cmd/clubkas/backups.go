package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clubkas/clubkas/internal/cli"
)

func backupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect and restore pre-deletion snapshots",
	}

	cmd.AddCommand(backupsListCmd())
	cmd.AddCommand(backupsShowCmd())
	cmd.AddCommand(backupsRestoreCmd())
	return cmd
}

func backupsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			backups, err := store.ListBackups(ctx)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				slog.Info("No backups recorded")
				return nil
			}
			for _, b := range backups {
				cmd.Printf("%s\t%s\t%s\n", b.ID, b.TakenAt.Format("2006-01-02 15:04:05"), b.Reason)
			}
			return nil
		},
	}
}

func backupsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <backup-id>",
		Short: "Show the transactions captured in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			backup, err := store.GetBackup(ctx, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("Backup %s (%s): %s\n", backup.ID,
				backup.TakenAt.Format("2006-01-02 15:04:05"), backup.Reason)
			for _, txn := range backup.Transactions {
				cmd.Printf("  %s\t%s\t%s\t%s\n",
					txn.SequenceNumber, txn.ExecutionDate.Format("2006-01-02"),
					txn.Amount.StringFixed(2), txn.CounterpartyName)
			}
			return nil
		},
	}
}

func backupsRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Write a snapshot's transactions back into the ledger",
		Long: `Re-inserts the snapshotted transactions. Sequence numbers that exist
again already are left untouched, so restoring is idempotent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, _, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			backup, err := store.GetBackup(ctx, args[0])
			if err != nil {
				return err
			}
			if len(backup.Transactions) == 0 {
				slog.Info("Backup holds no transactions")
				return nil
			}
			if err := store.SaveTransactions(ctx, backup.Transactions); err != nil {
				return err
			}
			slog.Info(cli.FormatSuccess("Backup restored"),
				"backup", backup.ID, "transactions", len(backup.Transactions))
			return nil
		},
	}
}
