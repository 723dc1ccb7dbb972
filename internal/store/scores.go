package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/lethe/internal/retention"
)

// ReplaceScores swaps the persisted retention store for the given pass.
func (db *DB) ReplaceScores(scores map[string]retention.RetentionScore) error {
	return db.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM retention_scores`); err != nil {
			return fmt.Errorf("clear scores: %w", err)
		}
		stmt, err := tx.Prepare(`
			INSERT INTO retention_scores (node_id, time_score, frequency_score, importance_score,
				emotional_score, connection_score, overall_score, should_forget, forgetting_reason, analyzed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare score insert: %w", err)
		}
		defer stmt.Close()

		for _, rs := range scores {
			if _, err := stmt.Exec(rs.NodeID, rs.TimeScore, rs.FrequencyScore, rs.ImportanceScore,
				rs.EmotionalScore, rs.ConnectionScore, rs.OverallScore,
				boolInt(rs.ShouldForget), rs.ForgettingReason, toNanos(rs.AnalyzedAt)); err != nil {
				return fmt.Errorf("insert score %s: %w", rs.NodeID, err)
			}
		}
		return nil
	})
}

// LoadScores returns the persisted retention store and the latest analysis
// time found in it.
func (db *DB) LoadScores() (map[string]retention.RetentionScore, time.Time, error) {
	rows, err := db.Query(`
		SELECT node_id, time_score, frequency_score, importance_score, emotional_score,
			connection_score, overall_score, should_forget, forgetting_reason, analyzed_at
		FROM retention_scores
	`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]retention.RetentionScore)
	var latest time.Time
	for rows.Next() {
		var rs retention.RetentionScore
		var forget int
		var reason sql.NullString
		var analyzed sql.NullInt64
		if err := rows.Scan(&rs.NodeID, &rs.TimeScore, &rs.FrequencyScore, &rs.ImportanceScore,
			&rs.EmotionalScore, &rs.ConnectionScore, &rs.OverallScore, &forget, &reason, &analyzed); err != nil {
			return nil, time.Time{}, fmt.Errorf("scan score: %w", err)
		}
		rs.ShouldForget = forget != 0
		rs.ForgettingReason = reason.String
		rs.AnalyzedAt = fromNanos(analyzed)
		if rs.AnalyzedAt.After(latest) {
			latest = rs.AnalyzedAt
		}
		scores[rs.NodeID] = rs
	}
	return scores, latest, rows.Err()
}

// LatestAnalysis returns the newest analyzed_at in the retention scores, or
// the zero time if there are none.
func (db *DB) LatestAnalysis() (time.Time, error) {
	var latest sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(analyzed_at) FROM retention_scores`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("latest analysis: %w", err)
	}
	return fromNanos(latest), nil
}
