package subscription

import (
	"sort"
	"sync"
)

// Registry is an idempotent set of market IDs the client is subscribed to.
type Registry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]struct{})}
}

// Add records intent to stream a market. Returns true if the ID was not
// already present; repeated adds are no-ops.
func (r *Registry) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

// Remove drops a market from the set. Returns true if it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	return true
}

// Contains reports whether a market is in the set.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Snapshot returns the current set as a sorted slice. Replay after a
// reconnect iterates this snapshot so every tracked ID gets exactly one
// subscribe frame.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clear empties the set. Only a full disconnect clears subscription intent;
// transient reconnects must not.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[string]struct{})
}

// Len returns the number of tracked markets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}
