// Package testutil provides test utilities shared across the credit engine packages.
// It offers isolated in-memory databases and fluent builders for test data.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/Veraticus/credit-engine/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
	Rules   []model.RetentionRule
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup func(context.Context, service.Storage) error
	Rules       []model.RetentionRule
	Payments    []model.PaymentRecord
	Rates       []model.MonthlyRate
}

// SetupTestDB creates a migrated in-memory database seeded with the given rules.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.StandardRules())
func SetupTestDB(t *testing.T, rules []model.RetentionRule) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Rules: rules})
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if len(opts.Rules) > 0 {
		if err := store.SaveRules(ctx, opts.Rules); err != nil {
			t.Fatalf("failed to seed rules: %v", err)
		}
	}
	if len(opts.Payments) > 0 {
		if err := store.SavePayments(ctx, opts.Payments); err != nil {
			t.Fatalf("failed to seed payments: %v", err)
		}
	}
	if len(opts.Rates) > 0 {
		if err := store.SaveMonthlyRates(ctx, opts.Rates); err != nil {
			t.Fatalf("failed to seed rates: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		Rules:   opts.Rules,
		t:       t,
	}
}

// WithTransaction executes the given function within a database transaction.
// The transaction is always rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// MustSaveRun stores a run or fails the test.
func (db *TestDB) MustSaveRun(run *model.AnalysisRun) {
	db.t.Helper()
	if err := db.Storage.SaveAnalysisRun(context.Background(), run); err != nil {
		db.t.Fatalf("failed to save run %s: %v", run.ID, err)
	}
}
