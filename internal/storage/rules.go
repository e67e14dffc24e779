package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
)

// SaveRules upserts rules keyed by category and supplier type. IDs are
// written back into the slice.
func (s *SQLiteStorage) SaveRules(ctx context.Context, rules []model.RetentionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRules(rules); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveRulesTx(ctx, tx, rules)
	})
}

func (s *SQLiteStorage) saveRulesTx(ctx context.Context, tx *sql.Tx, rules []model.RetentionRule) error {
	for i := range rules {
		r := &rules[i]

		_, err := tx.ExecContext(ctx, `
			INSERT INTO retention_rules (category, supplier_type, citation, rate_percent, priority, exempt)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(category, supplier_type) DO UPDATE SET
				citation = excluded.citation,
				rate_percent = excluded.rate_percent,
				priority = excluded.priority,
				exempt = excluded.exempt
		`, string(r.Category), string(r.SupplierType), r.Citation, r.RatePercent, r.Priority, r.Exempt)
		if err != nil {
			return fmt.Errorf("failed to save rule %s/%s: %w", r.Category, r.SupplierType, err)
		}

		err = tx.QueryRowContext(ctx, `
			SELECT id FROM retention_rules WHERE category = ? AND supplier_type = ?
		`, string(r.Category), string(r.SupplierType)).Scan(&r.ID)
		if err != nil {
			return fmt.Errorf("failed to read rule ID: %w", err)
		}
	}

	return nil
}

// GetRules returns rules in match order: highest priority first, then
// specific categories before the wildcard, then insertion order.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.RetentionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getRulesTx(ctx, s.db)
}

func (s *SQLiteStorage) getRulesTx(ctx context.Context, q queryable) ([]model.RetentionRule, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, category, supplier_type, citation, rate_percent, priority, exempt
		FROM retention_rules
		ORDER BY priority DESC, (category = ?) ASC, id ASC
	`, string(model.AnyCategory))
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.RetentionRule
	for rows.Next() {
		var (
			r            model.RetentionRule
			category     string
			supplierType string
		)
		if err := rows.Scan(&r.ID, &category, &supplierType, &r.Citation, &r.RatePercent, &r.Priority, &r.Exempt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Category = model.ServiceCategory(category)
		r.SupplierType = model.SupplierType(supplierType)
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// DeleteRule removes a rule by ID.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.deleteRuleTx(ctx, s.db, id)
}

func (s *SQLiteStorage) deleteRuleTx(ctx context.Context, q queryable, id int) error {
	result, err := q.ExecContext(ctx, `DELETE FROM retention_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}
