package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Throttle drops inbound messages arriving faster than a minimum interval.
// It is a pure throttle, not a token bucket: there is no credit accumulation,
// bursts are dropped one message at a time. lastAccepted is seeded with the
// session start time, so the first message is only accepted once the interval
// has elapsed since connect.
//
// A throttle belongs to exactly one session's read loop and is not safe for
// concurrent use.
type Throttle struct {
	clock        clockwork.Clock
	minInterval  time.Duration
	lastAccepted time.Time
}

func NewThrottle(clock clockwork.Clock, minInterval time.Duration) *Throttle {
	return &Throttle{
		clock:        clock,
		minInterval:  minInterval,
		lastAccepted: clock.Now(),
	}
}

// Allow reports whether a message arriving now may be processed. Rejected
// messages leave lastAccepted untouched.
func (t *Throttle) Allow() bool {
	now := t.clock.Now()
	if now.Sub(t.lastAccepted) < t.minInterval {
		return false
	}
	t.lastAccepted = now
	return true
}
