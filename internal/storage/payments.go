package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
)

const paymentColumns = `id, supplier_id, supplier_tax_id, payment_date, category, supplier_type,
	payment_amount, taxable_amount, is_exempt_supplier`

// SavePayments stores payments. Records are immutable once imported, so
// payments whose ID already exists are left untouched.
func (s *SQLiteStorage) SavePayments(ctx context.Context, payments []model.PaymentRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePayments(payments); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.savePaymentsTx(ctx, tx, payments)
	})
}

func (s *SQLiteStorage) savePaymentsTx(ctx context.Context, tx *sql.Tx, payments []model.PaymentRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range payments {
		p := &payments[i]
		_, err = stmt.ExecContext(ctx,
			p.ID,
			p.SupplierID,
			p.SupplierTaxID,
			model.DateOnly(p.PaymentDate),
			string(p.Category),
			string(p.SupplierType),
			p.PaymentAmount,
			p.TaxableAmount,
			p.IsExemptSupplier,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment %s: %w", p.ID, err)
		}
	}

	return nil
}

// GetPayments returns payments matching the filter ordered by date.
func (s *SQLiteStorage) GetPayments(ctx context.Context, filter service.PaymentFilter) ([]model.PaymentRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getPaymentsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getPaymentsTx(ctx context.Context, q queryable, filter service.PaymentFilter) ([]model.PaymentRecord, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v",
			common.ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	var (
		where []string
		args  []any
	)
	if filter.StartDate != nil {
		where = append(where, "payment_date >= ?")
		args = append(args, model.DateOnly(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "payment_date <= ?")
		args = append(args, model.DateOnly(*filter.EndDate))
	}
	if filter.SupplierID != "" {
		where = append(where, "supplier_id = ?")
		args = append(args, filter.SupplierID)
	}

	query := "SELECT " + paymentColumns + " FROM payments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY payment_date, id"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payments []model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}

	return payments, rows.Err()
}

// GetPaymentByID retrieves a single payment.
func (s *SQLiteStorage) GetPaymentByID(ctx context.Context, id string) (*model.PaymentRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getPaymentByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getPaymentByIDTx(ctx context.Context, q queryable, id string) (*model.PaymentRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = ?", id)

	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, common.ErrNotFound)
	}
	return p, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (*model.PaymentRecord, error) {
	var (
		p            model.PaymentRecord
		category     string
		supplierType string
	)

	err := row.Scan(
		&p.ID,
		&p.SupplierID,
		&p.SupplierTaxID,
		&p.PaymentDate,
		&category,
		&supplierType,
		&p.PaymentAmount,
		&p.TaxableAmount,
		&p.IsExemptSupplier,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	p.Category = model.ServiceCategory(category)
	p.SupplierType = model.SupplierType(supplierType)
	return &p, nil
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}
	return query, args
}
