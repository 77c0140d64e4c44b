package recon

import (
	"fmt"
	"strings"

	"github.com/clubkas/clubkas/internal/cli"
	"github.com/clubkas/clubkas/internal/plan"
)

// RenderText renders a report for operator review. It lists every
// issue with its amount impact and the affected sequence numbers, so a
// dry run gives the operator everything needed to decide on execution.
func RenderText(r *Report) string {
	var b strings.Builder

	mode := "execute"
	if r.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(&b, "Reconciliation run %s (%s)\n", r.RunID, mode)
	fmt.Fprintf(&b, "State: %s\n", r.State)
	fmt.Fprintf(&b, "Transactions scanned: %d\n\n", r.ScannedCount)

	fmt.Fprintf(&b, "Balance\n")
	fmt.Fprintf(&b, "  revenue:  %s\n", r.Balance.RevenueTotal.StringFixed(2))
	fmt.Fprintf(&b, "  expenses: %s\n", r.Balance.ExpenseTotal.StringFixed(2))
	fmt.Fprintf(&b, "  net:      %s\n", r.Balance.NetBalance.StringFixed(2))
	fmt.Fprintf(&b, "  final:    %s\n", r.Balance.FinalBalance.StringFixed(2))
	fmt.Fprintf(&b, "  included %d, parents excluded %d, other accounts excluded %d\n\n",
		r.Balance.IncludedCount, r.Balance.ExcludedParentCount, r.Balance.ExcludedOtherAccountCount)

	if len(r.DuplicateGroups) > 0 {
		fmt.Fprintf(&b, "Duplicate groups: %d\n", len(r.DuplicateGroups))
		for _, g := range r.DuplicateGroups {
			var extras []string
			for _, t := range g.Extras() {
				extras = append(extras, t.SequenceNumber)
			}
			fmt.Fprintf(&b, "  keep %s, delete %s (account %s)\n",
				g.Canonical().SequenceNumber, strings.Join(extras, ", "), g.AccountNumber)
		}
		b.WriteString("\n")
	}

	if len(r.Orphans) > 0 {
		fmt.Fprintf(&b, "Orphan children: %d\n", len(r.Orphans))
		for _, orphan := range r.Orphans {
			fmt.Fprintf(&b, "  %s references missing parent %s (amount %s)\n",
				orphan.SequenceNumber, orphan.ParentTransactionID, orphan.Amount.StringFixed(2))
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Warnings: %d\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s\n", w)
		}
		b.WriteString("\n")
	}

	for _, p := range r.Plans() {
		renderPlan(&b, p)
	}

	if r.Execution != nil {
		fmt.Fprintf(&b, "Execution: %d/%d actions in %d batches\n",
			r.Execution.Processed, r.Execution.Total, r.Execution.Batches)
		if r.Execution.FailedBatch >= 0 {
			fmt.Fprintf(&b, "  FAILED at batch %d; earlier batches stand\n", r.Execution.FailedBatch)
		}
		for _, id := range r.Execution.BackupIDs {
			fmt.Fprintf(&b, "  backup: %s\n", id)
		}
	}

	if r.Clean() {
		b.WriteString("Ledger is clean: nothing to repair.\n")
	}

	return b.String()
}

func renderPlan(b *strings.Builder, p *plan.Plan) {
	fmt.Fprintf(b, "Plan %q: %d actions, amount impact %s\n",
		p.Operation, len(p.Actions), p.AmountImpact().StringFixed(2))
	for _, a := range p.Actions {
		fmt.Fprintf(b, "  %s %s: %s\n", a.Kind, a.SequenceNumber, a.Reason)
	}
	b.WriteString("\n")
}

// RenderStyled wraps the text report in the standard boxed style for
// terminal display.
func RenderStyled(r *Report) string {
	title := fmt.Sprintf("Reconciliation %s", r.RunID)
	body := RenderText(r)
	if !r.Clean() && r.DryRun {
		body += "\n" + cli.FormatWarning("Dry run: no changes were written. Re-run with --execute to apply.")
	}
	return cli.RenderBox(title, body)
}
