package scan

import (
	"strings"
	"sync"
)

// pruneThreshold caps how many idle lock entries the registry keeps around.
// A long-running process scanning many distinct subtrees would otherwise grow
// the map without bound.
const pruneThreshold = 50

// Registry hands out one mutex per ancestor path so that at most one
// creation sequence proceeds per subtree at a time. Keys are
// case-insensitive. Entries are reference-counted and pruned once idle when
// the registry grows past the threshold.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Token identifies one held lock; it must be passed back to Release.
type Token struct {
	key   string
	entry *lockEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]*lockEntry{}}
}

// Acquire blocks until no other holder has the same key.
func (r *Registry) Acquire(key string) *Token {
	e, token := r.checkout(key)
	e.mu.Lock()
	return token
}

// TryAcquire acquires the key only if it is immediately available. Used by
// the reconciliation path so an already-running pass is skipped, never
// queued behind.
func (r *Registry) TryAcquire(key string) (*Token, bool) {
	e, token := r.checkout(key)
	if !e.mu.TryLock() {
		r.checkin(token)
		return nil, false
	}
	return token, true
}

func (r *Registry) checkout(key string) (*lockEntry, *Token) {
	key = strings.ToLower(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		e = &lockEntry{}
		r.entries[key] = e
	}
	e.refs++

	return e, &Token{key: key, entry: e}
}

// Release wakes the next waiter, if any, and prunes the entry once nothing
// references it and the registry has grown past the threshold.
func (r *Registry) Release(t *Token) {
	t.entry.mu.Unlock()
	r.checkin(t)
}

func (r *Registry) checkin(t *Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.entry.refs--
	if t.entry.refs == 0 && len(r.entries) > pruneThreshold {
		delete(r.entries, t.key)
	}
}

// Len reports how many keys the registry currently tracks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
