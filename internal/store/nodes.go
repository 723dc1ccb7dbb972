package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lazypower/lethe/internal/retention"
)

const nodeColumns = `id, content, node_type, pinned, created_at, last_touched_at`

// CreateNode inserts a new active node. CreatedAt and LastTouchedAt default
// to now when zero and must otherwise be representable as Unix nanoseconds.
// Fails if the id is active or archived.
func (db *DB) CreateNode(n *retention.Node) error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("create node: id required")
	}
	if n.Type == "" {
		n.Type = retention.TypeNote
	}
	if err := CheckTime("created_at", n.CreatedAt); err != nil {
		return err
	}
	if err := CheckTime("last_touched_at", n.LastTouchedAt); err != nil {
		return err
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.LastTouchedAt.IsZero() {
		n.LastTouchedAt = n.CreatedAt
	}

	archived, err := db.IsArchived(n.ID)
	if err != nil {
		return err
	}
	if archived {
		return &retention.AlreadyArchivedError{ID: n.ID}
	}
	if existing, err := db.GetNode(n.ID); err != nil {
		return err
	} else if existing != nil {
		return &retention.ValidationError{Field: "id", Reason: fmt.Sprintf("node %s already exists", n.ID)}
	}

	_, err = db.Exec(`
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.Content, n.Type, boolInt(n.Pinned), toNanos(n.CreatedAt), toNanos(n.LastTouchedAt))
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	return nil
}

// GetNode returns an active node by id, or nil if not found.
func (db *DB) GetNode(id string) (*retention.Node, error) {
	row := db.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// ListNodes returns all active nodes, oldest first.
func (db *DB) ListNodes() ([]retention.Node, error) {
	rows, err := db.Query(`SELECT ` + nodeColumns + ` FROM nodes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []retention.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// UpdateContent replaces a node's content and records an edit.
func (db *DB) UpdateContent(id, content string, at time.Time) error {
	return db.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE nodes SET content = ? WHERE id = ?`, content, id)
		if err != nil {
			return fmt.Errorf("update content: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &retention.NotFoundError{ID: id}
		}
		return touchTx(tx, id, retention.InteractionEdit, at)
	})
}

// SetPinned toggles the explicit pin on a node.
func (db *DB) SetPinned(id string, pinned bool) error {
	res, err := db.Exec(`UPDATE nodes SET pinned = ? WHERE id = ?`, boolInt(pinned), id)
	if err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &retention.NotFoundError{ID: id}
	}
	return nil
}

// CountNodes returns the number of active nodes.
func (db *DB) CountNodes() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(r rowScanner) (*retention.Node, error) {
	var n retention.Node
	var pinned int
	var created, touched sql.NullInt64
	if err := r.Scan(&n.ID, &n.Content, &n.Type, &pinned, &created, &touched); err != nil {
		return nil, err
	}
	n.Pinned = pinned != 0
	n.CreatedAt = fromNanos(created)
	n.LastTouchedAt = fromNanos(touched)
	return &n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
