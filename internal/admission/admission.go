// Package admission enforces the per-identity concurrent-connection ceiling.
package admission

import (
	"sync"
)

// Controller maps an anonymized client identity to its live connection count.
// Identities with no live connections leave no residue in the map.
type Controller struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

func NewController(limit int) *Controller {
	return &Controller{
		counts: make(map[string]int),
		limit:  limit,
	}
}

// Admit attempts to claim a connection slot for identity. The count check and
// increment happen as one read-modify-write under the lock, so two racing
// connections can never both pass on a stale count. On success the returned
// Slot must be released exactly once when the session ends.
func (c *Controller) Admit(identity string) (*Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.counts[identity] >= c.limit {
		return nil, false
	}
	c.counts[identity]++
	return &Slot{controller: c, identity: identity}, true
}

func (c *Controller) release(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if count := c.counts[identity]; count > 0 {
		if count == 1 {
			delete(c.counts, identity)
		} else {
			c.counts[identity] = count - 1
		}
	}
}

// Count returns the live connection count for identity.
func (c *Controller) Count(identity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[identity]
}

// ActiveIdentities returns the number of identities with at least one live
// connection.
func (c *Controller) ActiveIdentities() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counts)
}

// Slot is the release handle for one admitted connection. Release is
// idempotent so every session exit path may call it safely.
type Slot struct {
	controller *Controller
	identity   string
	once       sync.Once
}

func (s *Slot) Release() {
	s.once.Do(func() {
		s.controller.release(s.identity)
	})
}

// Identity returns the anonymized identity this slot was admitted under.
func (s *Slot) Identity() string {
	return s.identity
}
