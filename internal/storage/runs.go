package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
)

// SaveAnalysisRun stores a finished run with its opportunities and skipped
// records in one transaction. Each opportunity gets an initial history entry.
func (s *SQLiteStorage) SaveAnalysisRun(ctx context.Context, run *model.AnalysisRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveAnalysisRunTx(ctx, tx, run)
	})
}

func (s *SQLiteStorage) saveAnalysisRunTx(ctx context.Context, tx *sql.Tx, run *model.AnalysisRun) error {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []model.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to encode run warnings: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			id, client_id, status, window_start, window_end, as_of,
			minimum_credit_value, apply_correction, totals_identified, totals_approved,
			total, processed, outside_window, not_applicable, below_threshold,
			warnings, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.ClientID, string(run.Status),
		nullTime(run.WindowStart), nullTime(run.WindowEnd), model.DateOnly(run.AsOf),
		run.MinimumCreditValue, run.ApplySelicCorrection, run.TotalsIdentified, run.TotalsApproved,
		run.Total, run.Processed, run.OutsideWindow, run.NotApplicable, run.BelowThreshold,
		string(warningsJSON), run.StartedAt, nullTime(run.FinishedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("analysis run %s: %w", run.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}

	if err := s.insertOpportunitiesTx(ctx, tx, run.ID, run.Opportunities); err != nil {
		return err
	}

	for _, skipped := range run.Skipped {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO skipped_records (run_id, payment_id, code, reason)
			VALUES (?, ?, ?, ?)
		`, run.ID, skipped.PaymentID, string(skipped.Code), skipped.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert skipped record %s: %w", skipped.PaymentID, err)
		}
	}

	return nil
}

// GetAnalysisRun loads a run with its opportunities in input order.
// Totals are recomputed from the opportunities' current statuses.
func (s *SQLiteStorage) GetAnalysisRun(ctx context.Context, id string) (*model.AnalysisRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getAnalysisRunTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getAnalysisRunTx(ctx context.Context, q queryable, id string) (*model.AnalysisRun, error) {
	var (
		run          model.AnalysisRun
		status       string
		warningsJSON string
		windowStart  sql.NullTime
		windowEnd    sql.NullTime
		finishedAt   sql.NullTime
	)

	err := q.QueryRowContext(ctx, `
		SELECT id, client_id, status, window_start, window_end, as_of,
			minimum_credit_value, apply_correction, totals_identified, totals_approved,
			total, processed, outside_window, not_applicable, below_threshold,
			warnings, started_at, finished_at
		FROM analysis_runs
		WHERE id = ?
	`, id).Scan(
		&run.ID, &run.ClientID, &status, &windowStart, &windowEnd, &run.AsOf,
		&run.MinimumCreditValue, &run.ApplySelicCorrection, &run.TotalsIdentified, &run.TotalsApproved,
		&run.Total, &run.Processed, &run.OutsideWindow, &run.NotApplicable, &run.BelowThreshold,
		&warningsJSON, &run.StartedAt, &finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}

	run.Status = model.RunStatus(status)
	run.WindowStart = windowStart.Time
	run.WindowEnd = windowEnd.Time
	run.FinishedAt = finishedAt.Time

	if err := json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return nil, fmt.Errorf("%w: run %s warnings: %w", common.ErrDatabaseCorrupted, id, err)
	}

	run.Opportunities, err = s.listOpportunitiesTx(ctx, q, service.OpportunityFilter{RunID: id})
	if err != nil {
		return nil, err
	}
	if run.Opportunities == nil {
		run.Opportunities = []model.CreditOpportunity{}
	}

	run.Skipped, err = s.getSkippedTx(ctx, q, id)
	if err != nil {
		return nil, err
	}

	run.Recompute()
	return &run, nil
}

func (s *SQLiteStorage) getSkippedTx(ctx context.Context, q queryable, runID string) ([]model.SkippedRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT payment_id, code, reason
		FROM skipped_records
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var skipped []model.SkippedRecord
	for rows.Next() {
		var (
			r    model.SkippedRecord
			code string
		)
		if err := rows.Scan(&r.PaymentID, &code, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan skipped record: %w", err)
		}
		r.Code = model.SkipCode(code)
		skipped = append(skipped, r)
	}

	return skipped, rows.Err()
}

// ListAnalysisRuns returns the most recent runs first.
func (s *SQLiteStorage) ListAnalysisRuns(ctx context.Context, limit int) ([]service.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listAnalysisRunsTx(ctx, s.db, limit)
}

func (s *SQLiteStorage) listAnalysisRunsTx(ctx context.Context, q queryable, limit int) ([]service.RunSummary, error) {
	query, args := paginate(`
		SELECT r.id, r.client_id, r.status, r.started_at, r.totals_identified, r.totals_approved,
			(SELECT COUNT(*) FROM credit_opportunities o WHERE o.run_id = r.id),
			(SELECT COUNT(*) FROM skipped_records k WHERE k.run_id = r.id)
		FROM analysis_runs r
		ORDER BY r.started_at DESC, r.id`, nil, limit, 0)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []service.RunSummary
	for rows.Next() {
		var (
			r      service.RunSummary
			status string
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &status, &r.StartedAt,
			&r.TotalsIdentified, &r.TotalsApproved, &r.Opportunities, &r.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
