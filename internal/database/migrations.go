package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	Up          func(db *sql.DB) error
}

// migrations contains all database migrations in order.
// Add new migrations to the end of this slice.
var migrations = []Migration{
	// Version 1 is the initial schema, created by InitSchema()

	{
		Version:     2,
		Description: "Index journal tables by time",
		Up: func(db *sql.DB) error {
			_, err := db.Exec(`
				CREATE INDEX IF NOT EXISTS idx_mode_transitions_created ON mode_transitions(created_at);
				CREATE INDEX IF NOT EXISTS idx_connection_attempts_started ON connection_attempts(started_at);
			`)
			return err
		},
	},

	{
		Version:     3,
		Description: "Record best-effort warnings on connection attempts",
		Up: func(db *sql.DB) error {
			_, err := db.Exec(`ALTER TABLE connection_attempts ADD COLUMN warnings INTEGER NOT NULL DEFAULT 0`)
			if err != nil && !isDuplicateColumnError(err) {
				return fmt.Errorf("failed to add column warnings: %w", err)
			}
			return nil
		},
	},
}

// isDuplicateColumnError checks if an error is a "duplicate column" error
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate column") || strings.Contains(s, "already exists")
}

// Migrate runs all pending database migrations.
// It's safe to call this multiple times - it only runs migrations
// that haven't been applied yet.
func Migrate(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	targetVersion := CurrentSchemaVersion
	if len(migrations) > 0 && migrations[len(migrations)-1].Version > targetVersion {
		targetVersion = migrations[len(migrations)-1].Version
	}

	log.Debug().Int("current_version", currentVersion).Int("target_version", targetVersion).Msg("Checking migrations")

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		log.Info().Int("version", m.Version).Str("description", m.Description).Msg("Running migration")

		if err := m.Up(db); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}

		if err := SetSchemaVersion(db, m.Version); err != nil {
			return fmt.Errorf("failed to update schema version after migration %d: %w", m.Version, err)
		}

		// Best-effort history of applied migrations.
		db.Exec(`INSERT OR IGNORE INTO schema_migrations (version, description) VALUES (?, ?)`,
			m.Version, m.Description)
	}

	return nil
}

// Setup creates the schema and applies pending migrations.
// This is the main entry point for database initialization on startup.
func Setup(db *sql.DB) error {
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// CheckIntegrity runs SQLite integrity check on the database.
func CheckIntegrity(db *sql.DB) error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}
