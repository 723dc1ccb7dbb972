package engine

import "time"

// EventType names a change in the engine's state.
type EventType string

const (
	EventAnalysisCompleted EventType = "analysis_completed"
	EventNodeForgotten     EventType = "node_forgotten"
	EventNodePurged        EventType = "node_purged"
	EventNodeRecalled      EventType = "node_recalled"
	EventParametersChanged EventType = "parameters_changed"
)

// Event is delivered to subscribers after the change it describes is
// persisted.
type Event struct {
	Type   EventType `json:"type"`
	NodeID string    `json:"node_id,omitempty"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

// Subscribe registers fn for every future event and returns a function that
// removes it. fn runs on the goroutine that caused the event and must not
// block.
func (e *Engine) Subscribe(fn func(Event)) (cancel func()) {
	e.subMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subscribers[id] = fn
	e.subMu.Unlock()

	return func() {
		e.subMu.Lock()
		delete(e.subscribers, id)
		e.subMu.Unlock()
	}
}

func (e *Engine) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	e.subMu.RLock()
	subs := make([]func(Event), 0, len(e.subscribers))
	for _, fn := range e.subscribers {
		subs = append(subs, fn)
	}
	e.subMu.RUnlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
