package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/credit-engine/internal/model"
)

// SaveMonthlyRates upserts monthly rates keyed by month.
func (s *SQLiteStorage) SaveMonthlyRates(ctx context.Context, rates []model.MonthlyRate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMonthlyRates(rates); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveMonthlyRatesTx(ctx, tx, rates)
	})
}

func (s *SQLiteStorage) saveMonthlyRatesTx(ctx context.Context, tx *sql.Tx, rates []model.MonthlyRate) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monthly_rates (month, rate_percent, source, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(month) DO UPDATE SET
			rate_percent = excluded.rate_percent,
			source = excluded.source,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rates {
		if _, err := stmt.ExecContext(ctx, model.MonthStart(r.Month), r.RatePercent, r.Source); err != nil {
			return fmt.Errorf("failed to save rate for %s: %w", r.Month.Format("2006-01"), err)
		}
	}

	return nil
}

// GetMonthlyRates returns all stored rates, newest first.
func (s *SQLiteStorage) GetMonthlyRates(ctx context.Context) ([]model.MonthlyRate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getMonthlyRatesTx(ctx, s.db)
}

func (s *SQLiteStorage) getMonthlyRatesTx(ctx context.Context, q queryable) ([]model.MonthlyRate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT month, rate_percent, source
		FROM monthly_rates
		ORDER BY month DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly rates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rates []model.MonthlyRate
	for rows.Next() {
		var r model.MonthlyRate
		if err := rows.Scan(&r.Month, &r.RatePercent, &r.Source); err != nil {
			return nil, fmt.Errorf("failed to scan monthly rate: %w", err)
		}
		rates = append(rates, r)
	}

	return rates, rows.Err()
}
