package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
)

const opportunityColumns = `id, run_id, payment_id, supplier_id, status, applicable_rule, rejection_reason,
	retention_rate, retention_amount, correction_amount, confidence, retention_required, identification_date`

func (s *SQLiteStorage) insertOpportunitiesTx(ctx context.Context, tx *sql.Tx, runID string, opps []model.CreditOpportunity) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO credit_opportunities (`+opportunityColumns+`, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range opps {
		o := &opps[i]
		o.RunID = runID

		_, err = stmt.ExecContext(ctx,
			o.ID, runID, o.PaymentID, o.SupplierID, string(o.Status), o.ApplicableRule, o.RejectionReason,
			o.RetentionRate, o.RetentionAmount, o.CorrectionAmount, o.Confidence, o.RetentionRequired,
			o.IdentificationDate, i,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("opportunity %s: %w", o.ID, common.ErrDuplicateEntry)
			}
			return fmt.Errorf("failed to insert opportunity %s: %w", o.ID, err)
		}

		if err := insertHistoryTx(ctx, tx, service.StatusChange{
			OpportunityID: o.ID,
			ToStatus:      o.Status,
			Reason:        o.RejectionReason,
			ChangedAt:     o.IdentificationDate,
		}); err != nil {
			return err
		}
	}

	return nil
}

// GetOpportunity retrieves a single opportunity.
func (s *SQLiteStorage) GetOpportunity(ctx context.Context, id string) (*model.CreditOpportunity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getOpportunityTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getOpportunityTx(ctx context.Context, q queryable, id string) (*model.CreditOpportunity, error) {
	row := q.QueryRowContext(ctx, "SELECT "+opportunityColumns+" FROM credit_opportunities WHERE id = ?", id)

	opp, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("opportunity %s: %w", id, common.ErrNotFound)
	}
	return opp, err
}

// ListOpportunities returns opportunities matching the filter. Within a run
// they keep the order the payments were analyzed in.
func (s *SQLiteStorage) ListOpportunities(ctx context.Context, filter service.OpportunityFilter) ([]model.CreditOpportunity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listOpportunitiesTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) listOpportunitiesTx(ctx context.Context, q queryable, filter service.OpportunityFilter) ([]model.CreditOpportunity, error) {
	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "o.run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.SupplierID != "" {
		where = append(where, "o.supplier_id = ?")
		args = append(args, filter.SupplierID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		where = append(where, "o.status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := "SELECT " + prefixColumns("o", opportunityColumns) + `
		FROM credit_opportunities o
		JOIN analysis_runs r ON r.id = o.run_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.started_at, o.run_id, o.seq"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var opps []model.CreditOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, *opp)
	}

	return opps, rows.Err()
}

// UpdateOpportunity persists a status transition. The update only applies
// if the stored status still equals previous, so concurrent reviewers
// cannot both move the same opportunity.
func (s *SQLiteStorage) UpdateOpportunity(ctx context.Context, previous model.CreditStatus, opp *model.CreditOpportunity) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOpportunity(opp); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateOpportunityTx(ctx, tx, previous, opp)
	})
}

func (s *SQLiteStorage) updateOpportunityTx(ctx context.Context, tx *sql.Tx, previous model.CreditStatus, opp *model.CreditOpportunity) error {
	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx, `
		UPDATE credit_opportunities
		SET status = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(opp.Status), opp.RejectionReason, now, opp.ID, string(previous))
	if err != nil {
		return fmt.Errorf("failed to update opportunity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.getOpportunityTx(ctx, tx, opp.ID)
		if getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: opportunity %s is %s, expected %s",
			common.ErrInvalidTransition, opp.ID, current.Status, previous)
	}

	if err := insertHistoryTx(ctx, tx, service.StatusChange{
		OpportunityID: opp.ID,
		FromStatus:    previous,
		ToStatus:      opp.Status,
		Reason:        opp.RejectionReason,
		ChangedAt:     now,
	}); err != nil {
		return err
	}

	return s.refreshRunTotalsTx(ctx, tx, opp.ID)
}

// refreshRunTotalsTx recomputes the stored totals of the run owning the opportunity.
func (s *SQLiteStorage) refreshRunTotalsTx(ctx context.Context, tx *sql.Tx, oppID string) error {
	var runID string
	if err := tx.QueryRowContext(ctx, `SELECT run_id FROM credit_opportunities WHERE id = ?`, oppID).Scan(&runID); err != nil {
		return fmt.Errorf("failed to resolve run for opportunity %s: %w", oppID, err)
	}

	opps, err := s.listOpportunitiesTx(ctx, tx, service.OpportunityFilter{RunID: runID})
	if err != nil {
		return err
	}

	totals := model.Summarize(opps)
	_, err = tx.ExecContext(ctx, `
		UPDATE analysis_runs SET totals_identified = ?, totals_approved = ? WHERE id = ?
	`, totals.Identified, totals.Approved, runID)
	if err != nil {
		return fmt.Errorf("failed to refresh run totals: %w", err)
	}
	return nil
}

// GetOpportunityHistory returns the audit trail of an opportunity, oldest first.
func (s *SQLiteStorage) GetOpportunityHistory(ctx context.Context, id string) ([]service.StatusChange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getOpportunityHistoryTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getOpportunityHistoryTx(ctx context.Context, q queryable, id string) ([]service.StatusChange, error) {
	if _, err := s.getOpportunityTx(ctx, q, id); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT opportunity_id, from_status, to_status, reason, changed_at
		FROM opportunity_history
		WHERE opportunity_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunity history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []service.StatusChange
	for rows.Next() {
		var (
			change   service.StatusChange
			from, to string
		)
		if err := rows.Scan(&change.OpportunityID, &from, &to, &change.Reason, &change.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		change.FromStatus = model.CreditStatus(from)
		change.ToStatus = model.CreditStatus(to)
		history = append(history, change)
	}

	return history, rows.Err()
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, change service.StatusChange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO opportunity_history (opportunity_id, from_status, to_status, reason, changed_at)
		VALUES (?, ?, ?, ?, ?)
	`, change.OpportunityID, string(change.FromStatus), string(change.ToStatus), change.Reason, change.ChangedAt)
	if err != nil {
		return fmt.Errorf("failed to record status change for %s: %w", change.OpportunityID, err)
	}
	return nil
}

func scanOpportunity(row rowScanner) (*model.CreditOpportunity, error) {
	var (
		o      model.CreditOpportunity
		status string
	)

	err := row.Scan(
		&o.ID, &o.RunID, &o.PaymentID, &o.SupplierID, &status, &o.ApplicableRule, &o.RejectionReason,
		&o.RetentionRate, &o.RetentionAmount, &o.CorrectionAmount, &o.Confidence, &o.RetentionRequired,
		&o.IdentificationDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan opportunity: %w", err)
	}

	o.Status = model.CreditStatus(status)
	return &o, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
