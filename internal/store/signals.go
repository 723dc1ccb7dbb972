package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/lazypower/lethe/internal/retention"
)

// TouchNode records an interaction with a node and moves its last-touched
// time forward. Unknown ids fail with *retention.NotFoundError.
func (db *DB) TouchNode(id, kind string, at time.Time) error {
	if !retention.ValidInteraction(kind) {
		return fmt.Errorf("touch node: unknown interaction kind %q", kind)
	}
	return db.withTx(func(tx *sql.Tx) error {
		return touchTx(tx, id, kind, at)
	})
}

func touchTx(tx *sql.Tx, id, kind string, at time.Time) error {
	// last_touched_at only moves forward.
	res, err := tx.Exec(`
		UPDATE nodes SET last_touched_at = MAX(last_touched_at, ?) WHERE id = ?
	`, toNanos(at), id)
	if err != nil {
		return fmt.Errorf("touch node: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &retention.NotFoundError{ID: id}
	}
	if _, err := tx.Exec(`
		INSERT INTO interactions (node_id, kind, created_at) VALUES (?, ?, ?)
	`, id, kind, toNanos(at)); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// InteractionCounts returns per-node interaction counts since the given time.
// Nodes without interactions are absent from the map.
func (db *DB) InteractionCounts(since time.Time) (map[string]int, error) {
	rows, err := db.Query(`
		SELECT i.node_id, COUNT(*) FROM interactions i
		JOIN nodes n ON n.id = i.node_id
		WHERE i.created_at >= ?
		GROUP BY i.node_id
	`, toNanos(since))
	if err != nil {
		return nil, fmt.Errorf("interaction counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var c int
		if err := rows.Scan(&id, &c); err != nil {
			return nil, fmt.Errorf("scan interaction count: %w", err)
		}
		counts[id] = c
	}
	return counts, rows.Err()
}

// Link connects two active nodes with an undirected edge and records a
// connect interaction on both. Linking an existing pair is a no-op.
func (db *DB) Link(a, b string, at time.Time) error {
	if a == b {
		return fmt.Errorf("link: node %s cannot connect to itself", a)
	}
	if b < a {
		a, b = b, a
	}
	return db.withTx(func(tx *sql.Tx) error {
		for _, id := range []string{a, b} {
			var exists int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM nodes WHERE id = ?`, id).Scan(&exists); err != nil {
				return fmt.Errorf("link: %w", err)
			}
			if exists == 0 {
				return &retention.NotFoundError{ID: id}
			}
		}
		res, err := tx.Exec(`
			INSERT OR IGNORE INTO edges (source_id, target_id, created_at) VALUES (?, ?, ?)
		`, a, b, toNanos(at))
		if err != nil {
			return fmt.Errorf("link: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		for _, id := range []string{a, b} {
			if err := touchTx(tx, id, retention.InteractionConnect, at); err != nil {
				return err
			}
		}
		return nil
	})
}

// Unlink removes the edge between two nodes, if any.
func (db *DB) Unlink(a, b string) error {
	if b < a {
		a, b = b, a
	}
	if _, err := db.Exec(`DELETE FROM edges WHERE source_id = ? AND target_id = ?`, a, b); err != nil {
		return fmt.Errorf("unlink: %w", err)
	}
	return nil
}

// Degrees returns the connection degree of every active node, counting only
// edges whose other endpoint is also active. Every active node is present.
func (db *DB) Degrees() (map[string]int, error) {
	rows, err := db.Query(`
		SELECT n.id, COUNT(o.id)
		FROM nodes n
		LEFT JOIN edges e ON e.source_id = n.id OR e.target_id = n.id
		LEFT JOIN nodes o ON o.id = CASE WHEN e.source_id = n.id THEN e.target_id ELSE e.source_id END
		GROUP BY n.id
	`)
	if err != nil {
		return nil, fmt.Errorf("degrees: %w", err)
	}
	defer rows.Close()

	degrees := make(map[string]int)
	for rows.Next() {
		var id string
		var d int
		if err := rows.Scan(&id, &d); err != nil {
			return nil, fmt.Errorf("scan degree: %w", err)
		}
		degrees[id] = d
	}
	return degrees, rows.Err()
}

// RecordEmotion stores an emotional intensity for a node, keeping the highest
// value ever recorded.
func (db *DB) RecordEmotion(id string, intensity float64, at time.Time) error {
	if math.IsNaN(intensity) || intensity < 0 || intensity > 1 {
		return &retention.ValidationError{Field: "intensity", Reason: fmt.Sprintf("%v outside [0,1]", intensity)}
	}
	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("record emotion: %w", err)
	}
	if exists == 0 {
		return &retention.NotFoundError{ID: id}
	}
	_, err := db.Exec(`
		INSERT INTO emotions (node_id, max_intensity, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			max_intensity = MAX(max_intensity, excluded.max_intensity),
			updated_at = excluded.updated_at
	`, id, intensity, toNanos(at))
	if err != nil {
		return fmt.Errorf("record emotion: %w", err)
	}
	return nil
}

// EmotionIntensities returns the highest recorded intensity for the given
// node ids. Ids without a recorded emotion are absent.
func (db *DB) EmotionIntensities(ids []string) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	rows, err := db.Query(`SELECT node_id, max_intensity FROM emotions`)
	if err != nil {
		return nil, fmt.Errorf("emotion intensities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var v float64
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("scan emotion: %w", err)
		}
		if want[id] {
			out[id] = v
		}
	}
	return out, rows.Err()
}

// Snapshot reads the active node set with its degrees and interaction counts
// over the given window, as of now. Emotional signals are supplied separately
// by a signal provider.
func (db *DB) Snapshot(now time.Time, window time.Duration) (*retention.Snapshot, error) {
	nodes, err := db.ListNodes()
	if err != nil {
		return nil, err
	}
	degrees, err := db.Degrees()
	if err != nil {
		return nil, err
	}
	counts, err := db.InteractionCounts(now.Add(-window))
	if err != nil {
		return nil, err
	}
	return &retention.Snapshot{
		Nodes:        nodes,
		Degrees:      degrees,
		Interactions: counts,
		TakenAt:      now,
	}, nil
}
