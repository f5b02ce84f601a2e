// Package database provides SQLite database initialization and management.
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// CurrentSchemaVersion is the version created by Schema.
const CurrentSchemaVersion = 1

// Schema is the journal database. Live network state is never stored here:
// the system tools are the source of truth, the database only records what
// happened.
const Schema = `
CREATE TABLE IF NOT EXISTS system_state (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_migrations (
    version     INTEGER PRIMARY KEY,
    description TEXT NOT NULL,
    applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Every committed mode change.
CREATE TABLE IF NOT EXISTS mode_transitions (
    id          TEXT PRIMARY KEY,
    from_mode   TEXT NOT NULL,
    to_mode     TEXT NOT NULL,
    reason      TEXT NOT NULL DEFAULT '',
    ssid        TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL
);

-- Every finished connection attempt.
CREATE TABLE IF NOT EXISTS connection_attempts (
    id          TEXT PRIMARY KEY,
    ssid        TEXT NOT NULL,
    security    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    checks      INTEGER NOT NULL DEFAULT 0,
    message     TEXT NOT NULL DEFAULT '',
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL
);
`

// InitSchema initializes the database schema.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	log.Debug().Msg("Initializing database schema")

	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}
	if version == 0 {
		if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
	}
	return nil
}

// GetSchemaVersion returns the current schema version from the database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT CAST(value AS INTEGER) FROM system_state WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// SetSchemaVersion updates the schema version in the database.
func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec("INSERT OR REPLACE INTO system_state (key, value, updated_at) VALUES ('schema_version', ?, CURRENT_TIMESTAMP)", version)
	return err
}

// GetSystemState retrieves a system state value by key.
func GetSystemState(db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM system_state WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetSystemState sets a system state value.
func SetSystemState(db *sql.DB, key, value string) error {
	_, err := db.Exec("INSERT OR REPLACE INTO system_state (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)", key, value)
	return err
}
