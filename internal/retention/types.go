// Package retention holds the pure scoring, policy and archive logic of the
// forgetting engine. Nothing here performs I/O; persistence and scheduling
// live in the store and engine packages.
package retention

import "time"

// Node is an active knowledge node as seen by the engine.
type Node struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Type          string    `json:"type"`
	Pinned        bool      `json:"pinned"`
	CreatedAt     time.Time `json:"created_at"`
	LastTouchedAt time.Time `json:"last_touched_at"`
}

// Node kinds with a known base importance.
const (
	TypeCapture    = "capture"
	TypeNote       = "note"
	TypeTask       = "task"
	TypeQuestion   = "question"
	TypeIdea       = "idea"
	TypeInsight    = "insight"
	TypeConclusion = "conclusion"
)

// Interaction kinds counted toward the frequency score.
const (
	InteractionEdit    = "edit"
	InteractionSelect  = "select"
	InteractionConnect = "connect"
	InteractionView    = "view"
)

// ValidInteraction reports whether kind is a recognised interaction kind.
func ValidInteraction(kind string) bool {
	switch kind {
	case InteractionEdit, InteractionSelect, InteractionConnect, InteractionView:
		return true
	}
	return false
}

// RetentionScore is the per-node result of an analysis pass.
type RetentionScore struct {
	NodeID           string    `json:"node_id"`
	TimeScore        float64   `json:"time_score"`
	FrequencyScore   float64   `json:"frequency_score"`
	ImportanceScore  float64   `json:"importance_score"`
	EmotionalScore   float64   `json:"emotional_score"`
	ConnectionScore  float64   `json:"connection_score"`
	OverallScore     float64   `json:"overall_score"`
	ShouldForget     bool      `json:"should_forget"`
	ForgettingReason string    `json:"forgetting_reason,omitempty"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

// ForgottenNode is the immutable archive entry written when a node is forgotten.
type ForgottenNode struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Type          string    `json:"type"`
	Pinned        bool      `json:"pinned"`
	CreatedAt     time.Time `json:"created_at"`
	LastTouchedAt time.Time `json:"last_touched_at"`
	ForgottenAt   time.Time `json:"forgotten_at"`
	Reason        string    `json:"reason"`
	MemoryScore   float64   `json:"memory_score"`
}

// NewForgottenNode snapshots n at the moment of forgetting.
func NewForgottenNode(n Node, at time.Time, reason string, score float64) ForgottenNode {
	return ForgottenNode{
		ID:            n.ID,
		Content:       n.Content,
		Type:          n.Type,
		Pinned:        n.Pinned,
		CreatedAt:     n.CreatedAt,
		LastTouchedAt: n.LastTouchedAt,
		ForgottenAt:   at,
		Reason:        reason,
		MemoryScore:   score,
	}
}

// Restore rebuilds the active node. The node is treated as freshly touched at
// now so it does not immediately requalify for forgetting.
func (f ForgottenNode) Restore(now time.Time) Node {
	return Node{
		ID:            f.ID,
		Content:       f.Content,
		Type:          f.Type,
		Pinned:        f.Pinned,
		CreatedAt:     f.CreatedAt,
		LastTouchedAt: now,
	}
}

// Snapshot is the read-only input of one analysis pass.
//
// Degrees and Emotions are external signals: a node missing from either map
// gets the neutral default for that component. Interactions holds counts
// within the frequency window; a missing entry means no recorded history.
type Snapshot struct {
	Nodes        []Node
	Degrees      map[string]int
	Interactions map[string]int
	Emotions     map[string]float64
	TakenAt      time.Time
}

// MemoryHealthStats summarises the retention store.
type MemoryHealthStats struct {
	Total        int       `json:"total"`
	Healthy      int       `json:"healthy"`
	AtRisk       int       `json:"at_risk"`
	Forgettable  int       `json:"forgettable"`
	AverageScore float64   `json:"average_score"`
	Archived     int       `json:"archived"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
}
