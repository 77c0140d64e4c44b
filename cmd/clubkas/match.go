package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/clubkas/clubkas/internal/cli"
	"github.com/clubkas/clubkas/internal/match"
	"github.com/clubkas/clubkas/internal/model"
	"github.com/clubkas/clubkas/internal/service"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match payments to registrations and expense claims",
		Long: `Fuzzy-matches incoming payments against unpaid event registrations and
outgoing payments against expense claims. Matching is greedy with a
confidence threshold; anything below it is left for human review.
Dry run unless --execute is given.`,
		RunE: runMatch,
	}

	cmd.Flags().String("inscriptions", "", "JSON file of event registrations")
	cmd.Flags().String("claims", "", "JSON file of expense claims")
	cmd.Flags().Bool("execute", false, "record the matches (default: dry run)")
	_ = viper.BindPFlag("match.inscriptions", cmd.Flags().Lookup("inscriptions"))
	_ = viper.BindPFlag("match.claims", cmd.Flags().Lookup("claims"))
	_ = viper.BindPFlag("match.execute", cmd.Flags().Lookup("execute"))

	return cmd
}

// inscriptionFile mirrors the operations subsystem's export shape.
type inscriptionFile struct {
	ID         string `json:"id"`
	MemberName string `json:"member_name"`
	Price      string `json:"price"`
	Paid       bool   `json:"paid"`
}

// claimFile mirrors the expenses subsystem's export shape.
type claimFile struct {
	ID       string `json:"id"`
	Claimant string `json:"claimant"`
	Amount   string `json:"amount"`
}

func runMatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	execute := viper.GetBool("match.execute")
	inscriptionsPath := viper.GetString("match.inscriptions")
	claimsPath := viper.GetString("match.claims")

	if inscriptionsPath == "" && claimsPath == "" {
		return fmt.Errorf("nothing to match: provide --inscriptions and/or --claims")
	}

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

	// Only transactions without a recorded match are available to the
	// matcher; confirmed links are never overwritten.
	var available []model.Transaction
	for _, txn := range transactions {
		if len(txn.MatchedEntities) == 0 && !txn.IsParent {
			available = append(available, txn)
		}
	}

	matchedCount := 0

	if inscriptionsPath != "" {
		inscriptions, err := loadInscriptions(inscriptionsPath)
		if err != nil {
			return err
		}
		result := match.AutoMatch(inscriptions, available)
		for _, pair := range result.Matched {
			cmd.Printf("inscription %s (%s) ← %s  confidence %d\n",
				pair.Inscription.ID, pair.Inscription.MemberName,
				pair.Transaction.SequenceNumber, pair.Match.Confidence)
			if execute {
				if err := store.AppendEntityMatches(ctx, pair.Transaction.ID, []model.EntityMatch{pair.Match}); err != nil {
					return err
				}
			}
			available = removeTxn(available, pair.Transaction.ID)
		}
		matchedCount += len(result.Matched)
		slog.Info("Inscription matching done",
			"matched", len(result.Matched), "unmatched", result.UnmatchedCount)
	}

	if claimsPath != "" {
		claims, err := loadClaims(claimsPath)
		if err != nil {
			return err
		}
		result := match.AutoMatchClaims(claims, available)
		for _, pair := range result.Matched {
			cmd.Printf("claim %s (%s) ← %s  confidence %d\n",
				pair.Claim.ID, pair.Claim.Claimant,
				pair.Transaction.SequenceNumber, pair.Match.Confidence)
			if execute {
				if err := store.AppendEntityMatches(ctx, pair.Transaction.ID, []model.EntityMatch{pair.Match}); err != nil {
					return err
				}
			}
		}
		matchedCount += len(result.Matched)
		slog.Info("Claim matching done",
			"matched", len(result.Matched), "unmatched", result.UnmatchedCount)
	}

	if !execute && matchedCount > 0 {
		slog.Info(cli.FormatWarning("Dry run: matches were not recorded. Re-run with --execute to apply."))
	}
	return nil
}

func loadInscriptions(path string) ([]model.Inscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inscriptions: %w", err)
	}
	var rows []inscriptionFile
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("invalid inscriptions file: %w", err)
	}

	inscriptions := make([]model.Inscription, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("inscription %s: invalid price %q: %w", row.ID, row.Price, err)
		}
		inscriptions = append(inscriptions, model.Inscription{
			ID:         row.ID,
			MemberName: row.MemberName,
			Price:      price,
			Paid:       row.Paid,
		})
	}
	return inscriptions, nil
}

func loadClaims(path string) ([]model.ExpenseClaim, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read claims: %w", err)
	}
	var rows []claimFile
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("invalid claims file: %w", err)
	}

	claims := make([]model.ExpenseClaim, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("claim %s: invalid amount %q: %w", row.ID, row.Amount, err)
		}
		claims = append(claims, model.ExpenseClaim{
			ID:       row.ID,
			Claimant: row.Claimant,
			Amount:   amount,
		})
	}
	return claims, nil
}

func removeTxn(pool []model.Transaction, id string) []model.Transaction {
	for i, txn := range pool {
		if txn.ID == id {
			return append(pool[:i], pool[i+1:]...)
		}
	}
	return pool
}
