package session

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestThrottle_FirstMessageWaitsForInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	throttle := NewThrottle(clock, 100*time.Millisecond)

	assert.False(t, throttle.Allow())

	clock.Advance(100 * time.Millisecond)
	assert.True(t, throttle.Allow())
}

func TestThrottle_RejectionDoesNotResetWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	throttle := NewThrottle(clock, 100*time.Millisecond)

	clock.Advance(60 * time.Millisecond)
	assert.False(t, throttle.Allow())

	// A rejected message must not push the next acceptance further out.
	clock.Advance(40 * time.Millisecond)
	assert.True(t, throttle.Allow())
}

func TestThrottle_AcceptanceStartsNewWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	throttle := NewThrottle(clock, 100*time.Millisecond)

	clock.Advance(100 * time.Millisecond)
	assert.True(t, throttle.Allow())
	assert.False(t, throttle.Allow())

	clock.Advance(99 * time.Millisecond)
	assert.False(t, throttle.Allow())

	clock.Advance(time.Millisecond)
	assert.True(t, throttle.Allow())
}

func TestThrottle_ZeroIntervalAllowsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	throttle := NewThrottle(clock, 0)

	for i := 0; i < 5; i++ {
		assert.True(t, throttle.Allow())
	}
}
