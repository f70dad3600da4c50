package database

import (
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// schemaVersionSQL bootstraps migration tracking
const schemaVersionSQL = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
`

// migrations are written in the SQL subset shared by SQLite and PostgreSQL
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_predictions_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS predictions (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				source_ref TEXT NOT NULL DEFAULT '',
				prediction TEXT NOT NULL,
				probability_fake DOUBLE PRECISION NOT NULL,
				probability_true DOUBLE PRECISION NOT NULL,
				confidence DOUBLE PRECISION NOT NULL,
				confidence_tier TEXT NOT NULL,
				threshold_used DOUBLE PRECISION NOT NULL,
				recommendation TEXT NOT NULL,
				preview TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
		`,
	},
	{
		Version: 2,
		Name:    "create_daily_stats_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS daily_stats (
				date TEXT PRIMARY KEY,
				analyzed BIGINT NOT NULL DEFAULT 0,
				fakes BIGINT NOT NULL DEFAULT 0,
				high_confidence BIGINT NOT NULL DEFAULT 0
			);
		`,
	},
	{
		Version: 3,
		Name:    "create_jobs_table",
		SQL: `
			CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				url TEXT NOT NULL,
				status TEXT NOT NULL,
				prediction_ids TEXT NOT NULL DEFAULT '[]',
				error TEXT NOT NULL DEFAULT '',
				attempts INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
		`,
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate() error {
	logger := slog.Default().With("driver", db.driver)

	if _, err := db.conn.Exec(schemaVersionSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES ($1)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		logger.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

// SchemaVersion returns the highest applied migration
func (db *DB) SchemaVersion() (int, error) {
	var version int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
