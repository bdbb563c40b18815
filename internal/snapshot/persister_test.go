package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/colorpulse/internal/tally"
)

// recordingStore delivers every saved snapshot on a channel so tests can
// synchronize on persistence instead of sleeping.
type recordingStore struct {
	saved chan tally.Snapshot
}

func newRecordingStore() *recordingStore {
	return &recordingStore{saved: make(chan tally.Snapshot, 16)}
}

func (s *recordingStore) Save(_ context.Context, snap tally.Snapshot) error {
	s.saved <- snap
	return nil
}

func (s *recordingStore) Load(context.Context) (tally.Snapshot, bool, error) {
	return tally.Snapshot{}, false, nil
}

func (s *recordingStore) Ping(context.Context) error { return nil }

func waitForSave(t *testing.T, store *recordingStore) tally.Snapshot {
	t.Helper()
	select {
	case snap := <-store.saved:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot save")
		return tally.Snapshot{}
	}
}

func TestPersister_SavesOnEveryTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newRecordingStore()
	voteTally := tally.New()
	voteTally.Increment("red")
	voteTally.IncrementTotal()

	persister := NewPersister(store, voteTally, clock, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go persister.Run(ctx)

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	first := waitForSave(t, store)
	assert.Equal(t, uint64(1), first.Counts["red"])
	assert.Equal(t, uint64(1), first.Total)

	voteTally.Increment("blue")
	voteTally.IncrementTotal()

	clock.Advance(time.Minute)
	second := waitForSave(t, store)
	assert.Equal(t, uint64(1), second.Counts["blue"])
	assert.Equal(t, uint64(2), second.Total)
}

func TestPersister_FinalSaveOnShutdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newRecordingStore()
	voteTally := tally.New()
	voteTally.Increment("purple")
	voteTally.IncrementTotal()

	persister := NewPersister(store, voteTally, clock, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		persister.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	cancel()

	snap := waitForSave(t, store)
	assert.Equal(t, uint64(1), snap.Counts["purple"])

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("persister did not stop after cancellation")
	}
}

func TestPersister_FailureIsNotFatal(t *testing.T) {
	clock := clockwork.NewFakeClock()
	inner := &stubStore{}
	inner.failing.Store(true)
	voteTally := tally.New()

	persister := NewPersister(inner, voteTally, clock, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		persister.Run(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		return inner.saves.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Still running after the failed save.
	select {
	case <-done:
		t.Fatal("persister stopped after a save failure")
	default:
	}
	cancel()
}
