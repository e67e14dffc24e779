package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS payments (
					id TEXT PRIMARY KEY,
					supplier_id TEXT NOT NULL,
					supplier_tax_id TEXT NOT NULL,
					payment_date DATE NOT NULL,
					category TEXT NOT NULL,
					supplier_type TEXT NOT NULL,
					payment_amount TEXT NOT NULL,
					taxable_amount TEXT NOT NULL,
					is_exempt_supplier INTEGER NOT NULL DEFAULT 0,
					imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_payments_date ON payments(payment_date)`,
				`CREATE INDEX idx_payments_supplier ON payments(supplier_id)`,

				`CREATE TABLE IF NOT EXISTS retention_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					category TEXT NOT NULL,
					supplier_type TEXT NOT NULL,
					citation TEXT NOT NULL,
					rate_percent TEXT NOT NULL,
					priority INTEGER NOT NULL DEFAULT 0,
					exempt INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(category, supplier_type)
				)`,

				`CREATE TABLE IF NOT EXISTS monthly_rates (
					month DATE PRIMARY KEY,
					rate_percent TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT '',
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Add analysis runs and credit opportunities",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS analysis_runs (
					id TEXT PRIMARY KEY,
					client_id TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					window_start DATE,
					window_end DATE,
					as_of DATE NOT NULL,
					minimum_credit_value TEXT NOT NULL,
					apply_correction INTEGER NOT NULL DEFAULT 0,
					totals_identified TEXT NOT NULL,
					totals_approved TEXT NOT NULL,
					total INTEGER NOT NULL DEFAULT 0,
					processed INTEGER NOT NULL DEFAULT 0,
					outside_window INTEGER NOT NULL DEFAULT 0,
					not_applicable INTEGER NOT NULL DEFAULT 0,
					below_threshold INTEGER NOT NULL DEFAULT 0,
					warnings TEXT NOT NULL DEFAULT '[]',
					started_at DATETIME NOT NULL,
					finished_at DATETIME
				)`,
				`CREATE INDEX idx_runs_started ON analysis_runs(started_at)`,

				`CREATE TABLE IF NOT EXISTS credit_opportunities (
					id TEXT PRIMARY KEY,
					run_id TEXT NOT NULL REFERENCES analysis_runs(id),
					seq INTEGER NOT NULL,
					payment_id TEXT NOT NULL,
					supplier_id TEXT NOT NULL,
					status TEXT NOT NULL,
					applicable_rule TEXT NOT NULL,
					rejection_reason TEXT NOT NULL DEFAULT '',
					retention_rate TEXT NOT NULL,
					retention_amount TEXT NOT NULL,
					correction_amount TEXT NOT NULL,
					confidence INTEGER NOT NULL,
					retention_required INTEGER NOT NULL,
					identification_date DATETIME NOT NULL,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_opportunities_run ON credit_opportunities(run_id, seq)`,
				`CREATE INDEX idx_opportunities_status ON credit_opportunities(status)`,
				`CREATE INDEX idx_opportunities_supplier ON credit_opportunities(supplier_id)`,

				`CREATE TABLE IF NOT EXISTS skipped_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL REFERENCES analysis_runs(id),
					payment_id TEXT NOT NULL,
					code TEXT NOT NULL,
					reason TEXT NOT NULL
				)`,
				`CREATE INDEX idx_skipped_run ON skipped_records(run_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Add opportunity status history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS opportunity_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					opportunity_id TEXT NOT NULL REFERENCES credit_opportunities(id),
					from_status TEXT NOT NULL DEFAULT '',
					to_status TEXT NOT NULL,
					reason TEXT NOT NULL DEFAULT '',
					changed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_history_opportunity ON opportunity_history(opportunity_id)`,

				// Backfill creation entries for opportunities recorded before history existed.
				`INSERT INTO opportunity_history (opportunity_id, from_status, to_status, reason, changed_at)
				 SELECT id, '', status, rejection_reason, identification_date FROM credit_opportunities`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// SchemaVersion reports the current PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if currentVersion > ExpectedSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d",
			currentVersion, ExpectedSchemaVersion)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
