package scan

import (
	"strings"
	"sync"

	"github.com/kinotekahq/kinoteka/pkg/models"
)

// LookupCache memoizes path lookups for the duration of one batch, including
// explicit "nothing there" answers, so repeated walks over shared ancestors
// don't hit the store every time. It is purely advisory: every entry is
// overwritten whenever the scanner itself creates or deletes an item at that
// path, and a nil cache behaves like one that forgets everything.
type LookupCache struct {
	mu      sync.Mutex
	entries map[string]*models.Item
}

func NewLookupCache() *LookupCache {
	return &LookupCache{entries: map[string]*models.Item{}}
}

// Get returns the cached item (nil means "known absent") and whether the
// path has been looked up before.
func (c *LookupCache) Get(path string) (*models.Item, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.entries[strings.ToLower(path)]
	return item, ok
}

// Put records the result of a lookup. A nil item records a confirmed absence.
func (c *LookupCache) Put(path string, item *models.Item) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[strings.ToLower(path)] = item
}

// Forget drops a path entirely so the next lookup goes back to the store.
func (c *LookupCache) Forget(path string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, strings.ToLower(path))
}
