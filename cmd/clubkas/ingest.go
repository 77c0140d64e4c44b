package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/normalize"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest raw bank records into the ledger",
		Long: `Reads newline-delimited JSON records produced by the bank-statement
importer, normalizes them, computes dedup fingerprints and writes them
to the ledger. Records whose sequence number already exists are
silently skipped, so re-ingesting a statement is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().Int("batch-size", 0, "records per write batch (default from config)")
	_ = viper.BindPFlag("ingest.batch_size", cmd.Flags().Lookup("batch-size"))

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, cfg, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = file.Close() }()

	batchSize := viper.GetInt("ingest.batch_size")
	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}

	var (
		batch    []model.Transaction
		ingested int
		lineNo   int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.SaveTransactions(ctx, batch); err != nil {
			return fmt.Errorf("after %d records: %w", ingested, err)
		}
		ingested += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var raw model.RawRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			return fmt.Errorf("line %d: invalid record: %w", lineNo, err)
		}

		txn, err := normalize.Record(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		txn.ID = uuid.NewString()

		batch = append(batch, txn)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("Ingest complete", "records", ingested, "file", args[0])
	return nil
}
