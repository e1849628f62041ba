package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestDatabase(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "vitals.db")
	database, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func TestOpen_CreatesFileAndSchema(t *testing.T) {
	database := openTestDatabase(t)

	if _, err := os.Stat(database.Path()); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	version, dirty, err := MigrationVersionFromPath(database.Path())
	if err != nil {
		t.Fatalf("MigrationVersionFromPath() error = %v", err)
	}
	if version != SchemaVersion || dirty {
		t.Errorf("version = %d dirty = %v, want %d clean", version, dirty, SchemaVersion)
	}

	var journal string
	row, err := database.QueryRowContext(context.Background(), "PRAGMA journal_mode")
	if err != nil {
		t.Fatal(err)
	}
	if err := row.Scan(&journal); err != nil || journal != "wal" {
		t.Errorf("journal_mode = %q (%v), want wal", journal, err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitals.db")
	for i := 0; i < 2; i++ {
		database, err := Open(path, nil)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}
		if err := database.Close(); err != nil {
			t.Fatalf("Close() #%d error = %v", i+1, err)
		}
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

func TestClose_Twice(t *testing.T) {
	database := openTestDatabase(t)
	if err := database.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := database.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := database.Ping(context.Background()); err == nil {
		t.Error("Ping() after Close should fail")
	}
	if _, err := database.ExecContext(context.Background(), "SELECT 1"); err == nil {
		t.Error("ExecContext() after Close should fail")
	}
}

func TestMigrateDown_DropsTable(t *testing.T) {
	database := openTestDatabase(t)
	path := database.Path()
	database.Close()

	conn, err := NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := MigrateDown(conn, -1); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	conn, err = NewSQLiteConnection(DefaultConnectionConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	var name string
	err = conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='analyses'").Scan(&name)
	if err == nil {
		t.Error("analyses table still present after MigrateDown")
	}
}

func TestNewSQLiteConnection_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteConnection(ConnectionConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}
