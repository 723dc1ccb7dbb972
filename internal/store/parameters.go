package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lazypower/lethe/internal/retention"
)

// LoadParameters returns the persisted parameters, or nil if none were saved.
func (db *DB) LoadParameters() (*retention.ForgettingParameters, error) {
	var p retention.ForgettingParameters
	var strategy string
	var auto int
	err := db.QueryRow(`
		SELECT strategy, decay_rate, forgetting_threshold, minimum_retention_score,
			protection_period_days, max_forgotten_nodes, enable_auto_forgetting
		FROM parameters WHERE id = 1
	`).Scan(&strategy, &p.DecayRate, &p.ForgettingThreshold, &p.MinimumRetentionScore,
		&p.ProtectionPeriodDays, &p.MaxForgottenNodes, &auto)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load parameters: %w", err)
	}
	p.Strategy = retention.Strategy(strategy)
	p.EnableAutoForgetting = auto != 0
	return &p, nil
}

// SaveParameters persists p. Callers validate before saving.
func (db *DB) SaveParameters(p retention.ForgettingParameters) error {
	_, err := db.Exec(`
		INSERT INTO parameters (id, strategy, decay_rate, forgetting_threshold, minimum_retention_score,
			protection_period_days, max_forgotten_nodes, enable_auto_forgetting, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strategy = excluded.strategy,
			decay_rate = excluded.decay_rate,
			forgetting_threshold = excluded.forgetting_threshold,
			minimum_retention_score = excluded.minimum_retention_score,
			protection_period_days = excluded.protection_period_days,
			max_forgotten_nodes = excluded.max_forgotten_nodes,
			enable_auto_forgetting = excluded.enable_auto_forgetting,
			updated_at = excluded.updated_at
	`, string(p.Strategy), p.DecayRate, p.ForgettingThreshold, p.MinimumRetentionScore,
		p.ProtectionPeriodDays, p.MaxForgottenNodes, boolInt(p.EnableAutoForgetting), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save parameters: %w", err)
	}
	return nil
}

// AnalysisRun records one completed analysis pass.
type AnalysisRun struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	TakenAt        time.Time `json:"taken_at"`
	NodeCount      int       `json:"node_count"`
	CandidateCount int       `json:"candidate_count"`
	PartialSignals int       `json:"partial_signals"`
}

// RecordAnalysisRun appends a run to the history.
func (db *DB) RecordAnalysisRun(r AnalysisRun) error {
	_, err := db.Exec(`
		INSERT INTO analysis_runs (id, started_at, finished_at, taken_at, node_count, candidate_count, partial_signals)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, toNanos(r.StartedAt), toNanos(r.FinishedAt), toNanos(r.TakenAt), r.NodeCount, r.CandidateCount, r.PartialSignals)
	if err != nil {
		return fmt.Errorf("record analysis run: %w", err)
	}
	return nil
}

// ListAnalysisRuns returns the most recent runs, newest first.
func (db *DB) ListAnalysisRuns(limit int) ([]AnalysisRun, error) {
	rows, err := db.Query(`
		SELECT id, started_at, finished_at, taken_at, node_count, candidate_count, partial_signals
		FROM analysis_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		var r AnalysisRun
		var started, finished, taken sql.NullInt64
		if err := rows.Scan(&r.ID, &started, &finished, &taken, &r.NodeCount, &r.CandidateCount, &r.PartialSignals); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		r.StartedAt = fromNanos(started)
		r.FinishedAt = fromNanos(finished)
		r.TakenAt = fromNanos(taken)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
