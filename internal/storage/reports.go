package storage

import (
	"context"
	"fmt"

	"github.com/clubkas/clubkas/internal/model"
)

// SaveRunReport persists the outcome of a reconciliation run.
func (s *SQLiteStorage) SaveRunReport(ctx context.Context, report *model.RunReport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	if err := validateString(report.ID, "report.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO run_reports (id, started_at, finished_at, state, report) VALUES (?, ?, ?, ?, ?)",
		report.ID, report.StartedAt, report.FinishedAt, report.State, report.Report)
	if err != nil {
		return fmt.Errorf("failed to save run report %s: %w", report.ID, err)
	}
	return nil
}

// ListRunReports returns run reports, newest first.
func (s *SQLiteStorage) ListRunReports(ctx context.Context) ([]model.RunReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, started_at, finished_at, state, report FROM run_reports ORDER BY started_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list run reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []model.RunReport
	for rows.Next() {
		var r model.RunReport
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.State, &r.Report); err != nil {
			return nil, fmt.Errorf("failed to scan run report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
