package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/lazypower/lethe/internal/retention"
	"github.com/lazypower/lethe/internal/store"
)

// Report describes one completed analysis pass.
type Report struct {
	Run    store.AnalysisRun          `json:"run"`
	Scores []retention.RetentionScore `json:"scores"`
}

// Analyze snapshots the active nodes from the database, gathers emotional
// signals and runs an analysis pass over them.
func (e *Engine) Analyze(ctx context.Context) (*Report, error) {
	if !e.analyzing.CompareAndSwap(false, true) {
		return nil, ErrAnalysisInProgress
	}
	defer e.analyzing.Store(false)

	e.mu.Lock()
	report, err := e.analyzeLocked(ctx)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.emit(completedEvent(report))
	return report, nil
}

func (e *Engine) analyzeLocked(ctx context.Context) (*Report, error) {
	snap, err := e.DB.Snapshot(e.now(), e.window)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	ids := make([]string, len(snap.Nodes))
	for i, n := range snap.Nodes {
		ids[i] = n.ID
	}
	emotions, err := e.Signal.Intensities(ctx, ids)
	if err != nil {
		// Missing signals degrade to the neutral default.
		log.Printf("analysis: %s signal unavailable: %v", e.Signal.Name(), err)
		emotions = nil
	}
	snap.Emotions = emotions

	return e.runLocked(ctx, *snap)
}

// RunAnalysis scores every node of snap and replaces the retention store
// with the results. Scores are published only after the whole batch is
// scored and persisted. Running it twice on the same snapshot and parameters
// yields identical scores.
func (e *Engine) RunAnalysis(ctx context.Context, snap retention.Snapshot) (*Report, error) {
	if !e.analyzing.CompareAndSwap(false, true) {
		return nil, ErrAnalysisInProgress
	}
	defer e.analyzing.Store(false)

	e.mu.Lock()
	report, err := e.runLocked(ctx, snap)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	e.emit(completedEvent(report))
	return report, nil
}

func (e *Engine) runLocked(ctx context.Context, snap retention.Snapshot) (*Report, error) {
	if err := e.syncLocked(); err != nil {
		return nil, err
	}
	started := e.now()
	if snap.TakenAt.IsZero() {
		snap.TakenAt = started
	}

	// Archived nodes have no score; a stale snapshot must not revive them.
	active := snap.Nodes[:0:0]
	for _, n := range snap.Nodes {
		if e.archive.Contains(n.ID) {
			continue
		}
		active = append(active, n)
	}
	snap.Nodes = active

	results := e.calc.ScoreAll(snap, e.params.Get())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make(map[string]retention.RetentionScore, len(results))
	ordered := make([]retention.RetentionScore, 0, len(results))
	partial, candidates := 0, 0
	for _, r := range results {
		scores[r.Score.NodeID] = r.Score
		ordered = append(ordered, r.Score)
		if r.Score.ShouldForget {
			candidates++
		}
		for _, perr := range r.Partial {
			var pe *retention.PartialSignalError
			if errors.As(perr, &pe) && pe.Signal == "all" {
				log.Printf("analysis: %v", pe)
			}
		}
		if len(r.Partial) > 0 {
			partial++
		}
	}

	if err := e.DB.ReplaceScores(scores); err != nil {
		return nil, err
	}
	e.scores.Replace(scores, snap.TakenAt)

	run := store.AnalysisRun{
		ID:             uuid.NewString(),
		StartedAt:      started,
		FinishedAt:     e.now(),
		TakenAt:        snap.TakenAt,
		NodeCount:      len(scores),
		CandidateCount: candidates,
		PartialSignals: partial,
	}
	if err := e.DB.RecordAnalysisRun(run); err != nil {
		log.Printf("analysis: %v", err)
	}
	if partial > 0 {
		log.Printf("analysis: %d of %d nodes scored with default signals", partial, len(scores))
	}
	return &Report{Run: run, Scores: ordered}, nil
}

// AutoForget archives every node the last pass marked for forgetting,
// weakest first. It does nothing unless automatic forgetting is enabled.
func (e *Engine) AutoForget(ctx context.Context) ([]retention.ForgottenNode, error) {
	e.mu.Lock()
	err := e.syncLocked()
	enabled := e.params.Get().EnableAutoForgetting
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}

	var forgotten []retention.ForgottenNode
	for _, rs := range e.scores.Candidates() {
		if err := ctx.Err(); err != nil {
			return forgotten, err
		}
		f, err := e.Forget(ctx, rs.NodeID, rs.ForgettingReason)
		if err != nil {
			// The node may have been forgotten or deleted since the pass.
			log.Printf("auto-forget %s: %v", rs.NodeID, err)
			continue
		}
		forgotten = append(forgotten, f)
	}
	return forgotten, nil
}

func completedEvent(r *Report) Event {
	return Event{Type: EventAnalysisCompleted, At: r.Run.FinishedAt, Data: r.Run}
}
