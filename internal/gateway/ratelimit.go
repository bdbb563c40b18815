package gateway

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleCutoff      = 10 * time.Minute
)

// attemptLimiter throttles how fast a single address may open new
// connections, independent of the concurrency ceiling. Token bucket per IP
// via golang.org/x/time/rate.
type attemptLimiter struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newAttemptLimiter creates a limiter allowing the given sustained
// connections per second with the given burst.
func newAttemptLimiter(clock clockwork.Clock, connectionsPerSecond float64, burst int) *attemptLimiter {
	return &attemptLimiter{
		clock:     clock,
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: clock.Now().Add(limiterCleanupInterval),
	}
}

// Allow reports whether a new connection attempt from ip may proceed.
func (l *attemptLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanup(now)
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// cleanup removes limiters idle beyond the cutoff. Must be called with mu held.
func (l *attemptLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-limiterIdleCutoff)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}
