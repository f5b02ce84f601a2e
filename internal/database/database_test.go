package database

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesSchema(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "wifisetup.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(db)

	for _, table := range []string{"system_state", "mode_transitions", "connection_attempts"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	version, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatalf("GetSchemaVersion() error = %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}

	if err := CheckIntegrity(db); err != nil {
		t.Errorf("CheckIntegrity() error = %v", err)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "wifisetup.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(db)

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var sync int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if sync != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", sync)
	}
}

func TestSetupIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "wifisetup.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(db)

	if err := Setup(db); err != nil {
		t.Fatalf("second Setup() error = %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != len(migrations) {
		t.Errorf("schema_migrations rows = %d, want %d", count, len(migrations))
	}
}

func TestSystemState(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "wifisetup.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer Close(db)

	got, err := GetSystemState(db, "last_boot_mode")
	if err != nil || got != "" {
		t.Fatalf("GetSystemState() = %q, %v; want empty", got, err)
	}
	if err := SetSystemState(db, "last_boot_mode", "hotspot"); err != nil {
		t.Fatal(err)
	}
	got, _ = GetSystemState(db, "last_boot_mode")
	if got != "hotspot" {
		t.Errorf("GetSystemState() = %q, want hotspot", got)
	}
}

func TestIsDuplicateColumnError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate", errString("SQL logic error: duplicate column name: warnings"), true},
		{"other", errString("no such table"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDuplicateColumnError(tt.err); got != tt.want {
				t.Errorf("isDuplicateColumnError() = %v, want %v", got, tt.want)
			}
		})
	}
}

type errString string

func (e errString) Error() string { return string(e) }
