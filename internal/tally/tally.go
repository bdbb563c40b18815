// Package tally holds the process-wide vote counters shared by all sessions.
package tally

import (
	"sync/atomic"
)

// Categories is the closed set of recognized vote categories. Inbound frames
// must match one of these exactly to be counted.
var Categories = []string{"red", "green", "blue", "purple"}

// Tally is the shared vote state. Every counter is independently atomic; there
// is deliberately no cross-field lock, so a concurrent reader may observe the
// aggregate total ahead of a category counter or vice versa.
type Tally struct {
	counts          map[string]*atomic.Uint64
	total           atomic.Uint64
	concurrentUsers atomic.Int64
	totalUsers      atomic.Uint64
}

// Snapshot is a non-transactional read of every counter.
type Snapshot struct {
	Counts          map[string]uint64
	Total           uint64
	ConcurrentUsers int64
	TotalUsers      uint64
}

func New() *Tally {
	t := &Tally{counts: make(map[string]*atomic.Uint64, len(Categories))}
	for _, c := range Categories {
		t.counts[c] = &atomic.Uint64{}
	}
	return t
}

// Increment adds one vote to category and returns the post-increment value.
// Unknown categories are rejected without any mutation.
func (t *Tally) Increment(category string) (uint64, bool) {
	counter, ok := t.counts[category]
	if !ok {
		return 0, false
	}
	return counter.Add(1), true
}

// IncrementTotal bumps the aggregate vote counter, independent of any
// category counter.
func (t *Tally) IncrementTotal() uint64 {
	return t.total.Add(1)
}

// UserConnected records a new live connection and returns the new concurrent
// count and the new cumulative user count.
func (t *Tally) UserConnected() (concurrent int64, cumulative uint64) {
	return t.concurrentUsers.Add(1), t.totalUsers.Add(1)
}

// UserDisconnected records the end of a live connection.
func (t *Tally) UserDisconnected() int64 {
	return t.concurrentUsers.Add(-1)
}

func (t *Tally) Snapshot() Snapshot {
	snap := Snapshot{
		Counts:          make(map[string]uint64, len(t.counts)),
		Total:           t.total.Load(),
		ConcurrentUsers: t.concurrentUsers.Load(),
		TotalUsers:      t.totalUsers.Load(),
	}
	for name, counter := range t.counts {
		snap.Counts[name] = counter.Load()
	}
	return snap
}

// Restore seeds counters from a persisted snapshot. Intended for startup only,
// before any session is accepted; it is not safe against concurrent votes.
// Unknown categories in the snapshot are ignored. The concurrent-user gauge is
// never restored since no connections survive a restart.
func (t *Tally) Restore(snap Snapshot) {
	for name, value := range snap.Counts {
		if counter, ok := t.counts[name]; ok {
			counter.Store(value)
		}
	}
	t.total.Store(snap.Total)
	t.totalUsers.Store(snap.TotalUsers)
}
