package retention

import (
	"sort"
	"sync"
)

// Archive is the bounded collection of forgotten nodes, kept in ascending
// ForgottenAt order. Eviction is FIFO by forgetting time, never by score.
type Archive struct {
	mu      sync.RWMutex
	entries []ForgottenNode
}

// NewArchive builds an archive from previously persisted entries.
func NewArchive(entries []ForgottenNode) *Archive {
	a := &Archive{entries: append([]ForgottenNode(nil), entries...)}
	sortByForgottenAt(a.entries)
	return a
}

func sortByForgottenAt(entries []ForgottenNode) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ForgottenAt.Before(entries[j].ForgottenAt)
	})
}

// Insert adds f and, if the archive then holds more than capacity entries,
// purges the oldest ones. The purged entries are returned; they are gone for
// good. Inserting an id that is already archived fails with
// *AlreadyArchivedError and changes nothing.
func (a *Archive) Insert(f ForgottenNode, capacity int) ([]ForgottenNode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.indexOf(f.ID) >= 0 {
		return nil, &AlreadyArchivedError{ID: f.ID}
	}

	// Insert after any entry with the same or earlier ForgottenAt.
	i := sort.Search(len(a.entries), func(i int) bool {
		return a.entries[i].ForgottenAt.After(f.ForgottenAt)
	})
	a.entries = append(a.entries, ForgottenNode{})
	copy(a.entries[i+1:], a.entries[i:])
	a.entries[i] = f

	return a.trimLocked(capacity), nil
}

// Trim purges the oldest entries until at most capacity remain.
func (a *Archive) Trim(capacity int) []ForgottenNode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.trimLocked(capacity)
}

func (a *Archive) trimLocked(capacity int) []ForgottenNode {
	if capacity < 0 {
		capacity = 0
	}
	if len(a.entries) <= capacity {
		return nil
	}
	n := len(a.entries) - capacity
	purged := append([]ForgottenNode(nil), a.entries[:n]...)
	a.entries = append(a.entries[:0], a.entries[n:]...)
	return purged
}

// Remove takes the entry for id out of the archive.
func (a *Archive) Remove(id string) (ForgottenNode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexOf(id)
	if i < 0 {
		return ForgottenNode{}, &NotArchivedError{ID: id}
	}
	f := a.entries[i]
	a.entries = append(a.entries[:i], a.entries[i+1:]...)
	return f, nil
}

// Reset replaces the contents with entries, for callers that reload the
// archive from persistent storage.
func (a *Archive) Reset(entries []ForgottenNode) {
	sorted := append([]ForgottenNode(nil), entries...)
	sortByForgottenAt(sorted)

	a.mu.Lock()
	a.entries = sorted
	a.mu.Unlock()
}

// Get returns the entry for id.
func (a *Archive) Get(id string) (ForgottenNode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i := a.indexOf(id)
	if i < 0 {
		return ForgottenNode{}, false
	}
	return a.entries[i], true
}

// Contains reports whether id is archived.
func (a *Archive) Contains(id string) bool {
	_, ok := a.Get(id)
	return ok
}

// List returns the entries oldest first.
func (a *Archive) List() []ForgottenNode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]ForgottenNode(nil), a.entries...)
}

// Len returns the number of archived nodes.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *Archive) indexOf(id string) int {
	for i := range a.entries {
		if a.entries[i].ID == id {
			return i
		}
	}
	return -1
}
