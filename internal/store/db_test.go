package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{
		"schema_versions", "nodes", "edges", "interactions", "emotions",
		"retention_scores", "forgotten_nodes", "parameters", "analysis_runs",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, _ := db.SchemaVersion()
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d after re-migrate, want %d", v, len(migrations))
	}
}

func TestScoreConstraints(t *testing.T) {
	db := testDB(t)

	// should_forget without a reason violates the invariant
	_, err := db.Exec(`
		INSERT INTO retention_scores (node_id, time_score, frequency_score, importance_score,
			emotional_score, connection_score, overall_score, should_forget, forgetting_reason, analyzed_at)
		VALUES ('n', 0, 0, 0, 0, 0, 0, 1, NULL, 1)
	`)
	if err == nil {
		t.Error("expected error for should_forget without reason, got nil")
	}

	// Invalid interaction kind
	_, err = db.Exec(`INSERT INTO interactions (node_id, kind, created_at) VALUES ('n', 'stare', 1)`)
	if err == nil {
		t.Error("expected error for invalid interaction kind, got nil")
	}
}
