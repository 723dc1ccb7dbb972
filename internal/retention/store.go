package retention

import (
	"sort"
	"sync"
	"time"
)

// ScoreStore holds the latest retention score per node. A pass replaces the
// whole map so every score is consistent with a single snapshot time.
type ScoreStore struct {
	mu         sync.RWMutex
	scores     map[string]RetentionScore
	analyzedAt time.Time
}

// NewScoreStore returns an empty store.
func NewScoreStore() *ScoreStore {
	return &ScoreStore{scores: make(map[string]RetentionScore)}
}

// Replace installs scores as the result of the pass taken at analyzedAt.
func (s *ScoreStore) Replace(scores map[string]RetentionScore, analyzedAt time.Time) {
	next := make(map[string]RetentionScore, len(scores))
	for id, rs := range scores {
		next[id] = rs
	}
	s.mu.Lock()
	s.scores = next
	s.analyzedAt = analyzedAt
	s.mu.Unlock()
}

// Get returns the score for id.
func (s *ScoreStore) Get(id string) (RetentionScore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.scores[id]
	return rs, ok
}

// Delete drops id. Used when a node leaves the active set.
func (s *ScoreStore) Delete(id string) {
	s.mu.Lock()
	delete(s.scores, id)
	s.mu.Unlock()
}

// All returns a copy of every score.
func (s *ScoreStore) All() map[string]RetentionScore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]RetentionScore, len(s.scores))
	for id, rs := range s.scores {
		out[id] = rs
	}
	return out
}

// Sorted returns every score ordered by overall score ascending, then id.
func (s *ScoreStore) Sorted() []RetentionScore {
	all := s.All()
	out := make([]RetentionScore, 0, len(all))
	for _, rs := range all {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OverallScore != out[j].OverallScore {
			return out[i].OverallScore < out[j].OverallScore
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}

// Candidates returns the nodes the last pass marked for forgetting, weakest
// first.
func (s *ScoreStore) Candidates() []RetentionScore {
	var out []RetentionScore
	for _, rs := range s.Sorted() {
		if rs.ShouldForget {
			out = append(out, rs)
		}
	}
	return out
}

// AnalyzedAt returns the snapshot time of the last installed pass.
func (s *ScoreStore) AnalyzedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzedAt
}

// Len returns the number of scored nodes.
func (s *ScoreStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scores)
}
