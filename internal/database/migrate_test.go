package database

import (
	"path/filepath"
	"testing"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := db1.InsertWrestler(Wrestler{Name: "Gunther"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	all, err := db2.GetAllWrestlers()
	if err != nil {
		t.Fatalf("GetAllWrestlers: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected data to survive reopen, got %d wrestlers", len(all))
	}
}

func TestMigrationsAreOrdered(t *testing.T) {
	for i, m := range migrations {
		if m.Version != i+1 {
			t.Errorf("migration at index %d has version %d", i, m.Version)
		}
		if m.Description == "" {
			t.Errorf("migration %d has no description", m.Version)
		}
	}
}

func TestMigratePartialDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "partial.db")
	db, err := Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	// Roll back to version 1 and make sure reopening re-applies the rest.
	if _, err := db.conn.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("reset version: %v", err)
	}
	db.Close()

	db, err = Open(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	version, _ := getSchemaVersion(db.conn)
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}
