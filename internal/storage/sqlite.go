package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

var _ service.Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and :memory: needs exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database location.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// withTx runs fn inside a transaction, committing on success.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// isUniqueViolation reports whether err is a primary key or unique constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) SavePayments(ctx context.Context, payments []model.PaymentRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePayments(payments); err != nil {
		return err
	}
	return t.storage.savePaymentsTx(ctx, t.tx, payments)
}

func (t *sqliteTransaction) GetPayments(ctx context.Context, filter service.PaymentFilter) ([]model.PaymentRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getPaymentsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetPaymentByID(ctx context.Context, id string) (*model.PaymentRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getPaymentByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveRules(ctx context.Context, rules []model.RetentionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRules(rules); err != nil {
		return err
	}
	return t.storage.saveRulesTx(ctx, t.tx, rules)
}

func (t *sqliteTransaction) GetRules(ctx context.Context) ([]model.RetentionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRulesTx(ctx, t.tx)
}

func (t *sqliteTransaction) DeleteRule(ctx context.Context, id int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteRuleTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SaveMonthlyRates(ctx context.Context, rates []model.MonthlyRate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMonthlyRates(rates); err != nil {
		return err
	}
	return t.storage.saveMonthlyRatesTx(ctx, t.tx, rates)
}

func (t *sqliteTransaction) GetMonthlyRates(ctx context.Context) ([]model.MonthlyRate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getMonthlyRatesTx(ctx, t.tx)
}

func (t *sqliteTransaction) SaveAnalysisRun(ctx context.Context, run *model.AnalysisRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	return t.storage.saveAnalysisRunTx(ctx, t.tx, run)
}

func (t *sqliteTransaction) GetAnalysisRun(ctx context.Context, id string) (*model.AnalysisRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getAnalysisRunTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListAnalysisRuns(ctx context.Context, limit int) ([]service.RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listAnalysisRunsTx(ctx, t.tx, limit)
}

func (t *sqliteTransaction) GetOpportunity(ctx context.Context, id string) (*model.CreditOpportunity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getOpportunityTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListOpportunities(ctx context.Context, filter service.OpportunityFilter) ([]model.CreditOpportunity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listOpportunitiesTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) UpdateOpportunity(ctx context.Context, previous model.CreditStatus, opp *model.CreditOpportunity) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOpportunity(opp); err != nil {
		return err
	}
	return t.storage.updateOpportunityTx(ctx, t.tx, previous, opp)
}

func (t *sqliteTransaction) GetOpportunityHistory(ctx context.Context, id string) ([]service.StatusChange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getOpportunityHistoryTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("cannot close storage from within a transaction")
}
