package session

import (
	"sort"
	"sync"
)

// Registry maps session ids to their live handle. It holds no policy;
// callers serialize per id through the Supervisor.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Put replaces the entry for id. It never terminates a previous handle.
func (r *Registry) Put(id string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.SessionID = id
	r.entries[id] = e
}

// Remove deletes the entry for id, if any.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// RemoveHandle deletes the entry for id only while it still holds h, and
// reports whether it did.
func (r *Registry) RemoveHandle(id string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.Handle != h {
		return false
	}
	delete(r.entries, id)
	return true
}

// Holds reports whether h is the current handle for id.
func (r *Registry) Holds(id string, h Handle) bool {
	e, ok := r.Get(id)
	return ok && e.Handle == h
}

// List returns a snapshot ordered by session id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
