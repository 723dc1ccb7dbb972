package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/lazypower/lethe/internal/retention"
)

// ReasonManual is recorded when a node is forgotten on request rather than
// because its score qualified it.
const ReasonManual = "forgotten manually"

// Forget moves an active node into the archive. An empty reason falls back
// to the node's forgetting reason from the last pass, or ReasonManual.
// If the archive then exceeds its capacity, the oldest entries are purged
// permanently.
func (e *Engine) Forget(ctx context.Context, id, reason string) (retention.ForgottenNode, error) {
	f, events, err := e.forget(ctx, id, reason)
	e.emit(events...)
	return f, err
}

func (e *Engine) forget(ctx context.Context, id, reason string) (retention.ForgottenNode, []Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.syncLocked(); err != nil {
		return retention.ForgottenNode{}, nil, err
	}
	if e.archive.Contains(id) {
		return retention.ForgottenNode{}, nil, &retention.AlreadyArchivedError{ID: id}
	}
	n, err := e.DB.GetNode(id)
	if err != nil {
		return retention.ForgottenNode{}, nil, err
	}
	if n == nil {
		return retention.ForgottenNode{}, nil, &retention.NotFoundError{ID: id}
	}

	now := e.now()
	p := e.params.Get()

	rs, ok := e.scores.Get(id)
	if !ok {
		// Never analyzed: score it now so the archive records a real value.
		rs, err = e.scoreOne(ctx, *n, p)
		if err != nil {
			return retention.ForgottenNode{}, nil, err
		}
	}
	if reason == "" {
		reason = ReasonManual
		if rs.ShouldForget {
			reason = rs.ForgettingReason
		}
	}

	f := retention.NewForgottenNode(*n, now, reason, rs.OverallScore)
	purged, err := e.DB.ArchiveNode(f, p.MaxForgottenNodes)
	if err != nil {
		return retention.ForgottenNode{}, nil, err
	}
	e.scores.Delete(id)
	if err := e.reloadArchiveLocked(); err != nil {
		log.Printf("forget: reload archive: %v", err)
	}

	events := []Event{{Type: EventNodeForgotten, NodeID: id, At: now, Data: f}}
	for _, old := range purged {
		log.Printf("forget: archive full, purged %s (forgotten %s)", old.ID, old.ForgottenAt.Format("2006-01-02"))
		events = append(events, Event{Type: EventNodePurged, NodeID: old.ID, At: now})
	}
	return f, events, nil
}

// scoreOne scores a single node against fresh signals.
func (e *Engine) scoreOne(ctx context.Context, n retention.Node, p retention.ForgettingParameters) (retention.RetentionScore, error) {
	snap, err := e.DB.Snapshot(e.now(), e.window)
	if err != nil {
		return retention.RetentionScore{}, fmt.Errorf("snapshot: %w", err)
	}
	if emotions, err := e.Signal.Intensities(ctx, []string{n.ID}); err == nil {
		snap.Emotions = emotions
	}
	rs, _ := e.calc.Score(n, snap.SignalsFor(n.ID), p, snap.TakenAt)
	return rs, nil
}

// Recall moves an archived node back into the active set. The node is
// treated as freshly touched so the next pass does not immediately forget it
// again. Recalling an id that is not archived fails with
// *retention.NotArchivedError and changes nothing.
func (e *Engine) Recall(ctx context.Context, id string) (retention.Node, error) {
	n, ev, err := e.recall(id)
	if err != nil {
		return retention.Node{}, err
	}
	e.emit(ev)
	return n, nil
}

func (e *Engine) recall(id string) (retention.Node, Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	n, err := e.DB.RestoreNode(id, now)
	if err != nil {
		return retention.Node{}, Event{}, err
	}
	if err := e.reloadArchiveLocked(); err != nil {
		log.Printf("recall: reload archive: %v", err)
	}
	return n, Event{Type: EventNodeRecalled, NodeID: id, At: now, Data: n}, nil
}
