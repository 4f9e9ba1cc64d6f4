package db

import (
	"path/filepath"
	"testing"
)

func TestInitDB_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}

	for _, table := range []string{"device_status", "alert_events"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	v, err := SchemaVersion(conn)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != len(migrations) {
		t.Fatalf("schema version: want %d, got %d", len(migrations), v)
	}
	_ = conn.Close()

	// reopening an existing file keeps working and does not re-run migrations
	conn2, err := InitDB(path)
	if err != nil {
		t.Fatalf("second InitDB() error = %v", err)
	}
	defer conn2.Close()
	if v, _ := SchemaVersion(conn2); v != len(migrations) {
		t.Fatalf("schema version after reopen: want %d, got %d", len(migrations), v)
	}
}

func TestInitDB_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")
	conn, err := InitDB(path)
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	if _, err := conn.Exec("PRAGMA user_version = 999;"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = conn.Close()

	if _, err := InitDB(path); err == nil {
		t.Fatalf("expected error for schema newer than binary")
	}
}
