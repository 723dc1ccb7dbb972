package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/lethe/internal/retention"
)

const forgottenColumns = `id, content, node_type, pinned, created_at, last_touched_at, forgotten_at, reason, memory_score`

// ArchiveNode moves a node from the active set into the archive. If the
// archive then holds more than capacity entries, the oldest ones are purged
// for good in the same transaction and returned.
func (db *DB) ArchiveNode(f retention.ForgottenNode, capacity int) ([]retention.ForgottenNode, error) {
	var purged []retention.ForgottenNode
	err := db.withTx(func(tx *sql.Tx) error {
		archive, err := archiveTx(tx)
		if err != nil {
			return err
		}
		purged, err = archive.Insert(f, capacity)
		if err != nil {
			return err
		}

		res, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, f.ID)
		if err != nil {
			return fmt.Errorf("archive node: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &retention.NotFoundError{ID: f.ID}
		}
		if _, err := tx.Exec(`DELETE FROM retention_scores WHERE node_id = ?`, f.ID); err != nil {
			return fmt.Errorf("archive node: drop score: %w", err)
		}
		if _, err := tx.Exec(`
			INSERT INTO forgotten_nodes (`+forgottenColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, f.ID, f.Content, f.Type, boolInt(f.Pinned), toNanos(f.CreatedAt), toNanos(f.LastTouchedAt),
			toNanos(f.ForgottenAt), f.Reason, f.MemoryScore); err != nil {
			return fmt.Errorf("archive node: insert: %w", err)
		}
		return purgeAllTx(tx, purged)
	})
	if err != nil {
		return nil, err
	}
	return purged, nil
}

// RestoreNode moves an archived node back into the active set, touched at
// the given time.
func (db *DB) RestoreNode(id string, at time.Time) (retention.Node, error) {
	var n retention.Node
	err := db.withTx(func(tx *sql.Tx) error {
		archive, err := archiveTx(tx)
		if err != nil {
			return err
		}
		f, err := archive.Remove(id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM forgotten_nodes WHERE id = ?`, id); err != nil {
			return fmt.Errorf("restore node: %w", err)
		}
		n = f.Restore(at)
		if _, err := tx.Exec(`
			INSERT INTO nodes (`+nodeColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		`, n.ID, n.Content, n.Type, boolInt(n.Pinned), toNanos(n.CreatedAt), toNanos(n.LastTouchedAt)); err != nil {
			return fmt.Errorf("restore node: insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return retention.Node{}, err
	}
	return n, nil
}

// TrimArchive purges the oldest archive entries until at most capacity
// remain, and returns what it purged.
func (db *DB) TrimArchive(capacity int) ([]retention.ForgottenNode, error) {
	var purged []retention.ForgottenNode
	err := db.withTx(func(tx *sql.Tx) error {
		archive, err := archiveTx(tx)
		if err != nil {
			return err
		}
		purged = archive.Trim(capacity)
		return purgeAllTx(tx, purged)
	})
	if err != nil {
		return nil, err
	}
	return purged, nil
}

// archiveTx reads the persisted archive inside tx.
func archiveTx(tx *sql.Tx) (*retention.Archive, error) {
	rows, err := tx.Query(`SELECT ` + forgottenColumns + ` FROM forgotten_nodes ORDER BY forgotten_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	defer rows.Close()

	var entries []retention.ForgottenNode
	for rows.Next() {
		f, err := scanForgotten(rows)
		if err != nil {
			return nil, fmt.Errorf("scan forgotten: %w", err)
		}
		entries = append(entries, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return retention.NewArchive(entries), nil
}

func purgeAllTx(tx *sql.Tx, entries []retention.ForgottenNode) error {
	for _, f := range entries {
		if err := purgeTx(tx, f.ID); err != nil {
			return err
		}
	}
	return nil
}

// purgeTx permanently deletes an archive entry and every signal that
// refers to it.
func purgeTx(tx *sql.Tx, id string) error {
	stmts := []string{
		`DELETE FROM forgotten_nodes WHERE id = ?`,
		`DELETE FROM edges WHERE ? IN (source_id, target_id)`,
		`DELETE FROM interactions WHERE node_id = ?`,
		`DELETE FROM emotions WHERE node_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("purge %s: %w", id, err)
		}
	}
	return nil
}

// ListForgotten returns the archive ordered by forgetting time, oldest first.
func (db *DB) ListForgotten() ([]retention.ForgottenNode, error) {
	rows, err := db.Query(`SELECT ` + forgottenColumns + ` FROM forgotten_nodes ORDER BY forgotten_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list forgotten: %w", err)
	}
	defer rows.Close()

	var out []retention.ForgottenNode
	for rows.Next() {
		f, err := scanForgotten(rows)
		if err != nil {
			return nil, fmt.Errorf("scan forgotten: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanForgotten(r rowScanner) (retention.ForgottenNode, error) {
	var f retention.ForgottenNode
	var pinned int
	var created, touched, forgotten sql.NullInt64
	if err := r.Scan(&f.ID, &f.Content, &f.Type, &pinned, &created, &touched,
		&forgotten, &f.Reason, &f.MemoryScore); err != nil {
		return retention.ForgottenNode{}, err
	}
	f.Pinned = pinned != 0
	f.CreatedAt = fromNanos(created)
	f.LastTouchedAt = fromNanos(touched)
	f.ForgottenAt = fromNanos(forgotten)
	return f, nil
}

// IsArchived reports whether id is in the archive.
func (db *DB) IsArchived(id string) (bool, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM forgotten_nodes WHERE id = ?`, id).Scan(&count); err != nil {
		return false, fmt.Errorf("is archived: %w", err)
	}
	return count > 0, nil
}
