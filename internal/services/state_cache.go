package services

import (
	"sync"

	"github.com/inboxd/inboxd/internal/store"
)

// StateCache holds the emails currently loaded by the UI. Action executors
// mutate it optimistically before the store confirms, and roll it back when
// the store refuses. Reads always get copies; cached entries are never
// handed out for mutation.
type StateCache struct {
	mu     sync.RWMutex
	emails map[int64]*store.Email
}

// NewStateCache creates an empty state cache.
func NewStateCache() *StateCache {
	return &StateCache{emails: make(map[int64]*store.Email)}
}

// Get returns a copy of the cached email, if present.
func (c *StateCache) Get(id int64) (*store.Email, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.emails[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Put stores a copy of the email.
func (c *StateCache) Put(e *store.Email) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails[e.ID] = e.Clone()
}

// Remove evicts an email.
func (c *StateCache) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.emails, id)
}

// Len returns the number of cached emails.
func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.emails)
}

// ReplaceAll swaps the cache contents for a freshly loaded page.
func (c *StateCache) ReplaceAll(emails []*store.Email) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails = make(map[int64]*store.Email, len(emails))
	for _, e := range emails {
		c.emails[e.ID] = e.Clone()
	}
}
