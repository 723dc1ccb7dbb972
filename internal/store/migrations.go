package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "nodes: active knowledge nodes",
		SQL: `
CREATE TABLE nodes (
    id              TEXT PRIMARY KEY,
    content         TEXT NOT NULL DEFAULT '',
    node_type       TEXT NOT NULL,
    pinned          INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    last_touched_at INTEGER NOT NULL
);

CREATE INDEX idx_nodes_created ON nodes(created_at);
`,
	},
	{
		Version:     2,
		Description: "edges + interactions + emotions: external scoring signals",
		SQL: `
-- Edges are kept when an endpoint is archived so a recall restores them.
CREATE TABLE edges (
    source_id  TEXT NOT NULL,
    target_id  TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (source_id, target_id),
    CHECK (source_id < target_id)
);

CREATE INDEX idx_edges_target ON edges(target_id);

CREATE TABLE interactions (
    id         INTEGER PRIMARY KEY,
    node_id    TEXT NOT NULL,
    kind       TEXT NOT NULL CHECK (kind IN ('edit', 'select', 'connect', 'view')),
    created_at INTEGER NOT NULL
);

CREATE INDEX idx_interactions_node    ON interactions(node_id);
CREATE INDEX idx_interactions_created ON interactions(created_at DESC);

CREATE TABLE emotions (
    node_id       TEXT PRIMARY KEY,
    max_intensity REAL NOT NULL CHECK (max_intensity >= 0 AND max_intensity <= 1),
    updated_at    INTEGER NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "retention_scores: latest analysis pass",
		SQL: `
CREATE TABLE retention_scores (
    node_id           TEXT PRIMARY KEY,
    time_score        REAL NOT NULL,
    frequency_score   REAL NOT NULL,
    importance_score  REAL NOT NULL,
    emotional_score   REAL NOT NULL,
    connection_score  REAL NOT NULL,
    overall_score     REAL NOT NULL,
    should_forget     INTEGER NOT NULL DEFAULT 0,
    forgetting_reason TEXT,
    analyzed_at       INTEGER NOT NULL,
    CHECK (should_forget = 0 OR forgetting_reason IS NOT NULL)
);

CREATE INDEX idx_scores_overall ON retention_scores(overall_score);
`,
	},
	{
		Version:     4,
		Description: "forgotten_nodes: bounded archive",
		SQL: `
CREATE TABLE forgotten_nodes (
    id              TEXT PRIMARY KEY,
    content         TEXT NOT NULL DEFAULT '',
    node_type       TEXT NOT NULL,
    pinned          INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    last_touched_at INTEGER NOT NULL,
    forgotten_at    INTEGER NOT NULL,
    reason          TEXT NOT NULL,
    memory_score    REAL NOT NULL
);

CREATE INDEX idx_forgotten_at ON forgotten_nodes(forgotten_at);
`,
	},
	{
		Version:     5,
		Description: "parameters + analysis_runs",
		SQL: `
CREATE TABLE parameters (
    id                      INTEGER PRIMARY KEY CHECK (id = 1),
    strategy                TEXT NOT NULL,
    decay_rate              REAL NOT NULL,
    forgetting_threshold    REAL NOT NULL,
    minimum_retention_score REAL NOT NULL,
    protection_period_days  INTEGER NOT NULL,
    max_forgotten_nodes     INTEGER NOT NULL,
    enable_auto_forgetting  INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL
);

CREATE TABLE analysis_runs (
    id              TEXT PRIMARY KEY,
    started_at      INTEGER NOT NULL,
    finished_at     INTEGER NOT NULL,
    taken_at        INTEGER NOT NULL,
    node_count      INTEGER NOT NULL,
    candidate_count INTEGER NOT NULL,
    partial_signals INTEGER NOT NULL
);

CREATE INDEX idx_runs_started ON analysis_runs(started_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
