package signal

import (
	"context"
	"sync"
)

// Mock is a test double for the Provider interface.
type Mock struct {
	Values map[string]float64
	Err    error

	mu    sync.Mutex
	Calls [][]string // records the ids of each call
}

func (m *Mock) Name() string { return "mock" }

// Intensities records the call and returns the configured values.
func (m *Mock) Intensities(ctx context.Context, ids []string) (map[string]float64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string(nil), ids...))
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if v, ok := m.Values[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}
