package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/colorpulse/internal/metrics"
	"github.com/pscheid92/colorpulse/internal/tally"
)

// BreakerStore wraps a Store with a circuit breaker so a dead backend cannot
// stall every persistence tick: while the circuit is open, saves fail fast
// and the in-memory tally remains authoritative.
type BreakerStore struct {
	inner Store
	cb    circuitbreaker.CircuitBreaker[any]
}

func NewBreakerStore(inner Store) *BreakerStore {
	// Count-based threshold: saves happen once per snapshot interval, so a
	// rate threshold over a short rolling window would never accumulate
	// enough executions to open.
	cb := circuitbreaker.Builder[any]().
		WithFailureThreshold(5).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Snapshot store circuit breaker state changed",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.SnapshotCircuitState.Set(stateToFloat(e.NewState))
		}).
		Build()

	return &BreakerStore{inner: inner, cb: cb}
}

func (s *BreakerStore) Save(ctx context.Context, snap tally.Snapshot) error {
	if !s.cb.TryAcquirePermit() {
		return fmt.Errorf("snapshot save skipped: %w", circuitbreaker.ErrOpen)
	}

	if err := s.inner.Save(ctx, snap); err != nil {
		s.cb.RecordError(err)
		return err
	}
	s.cb.RecordSuccess()
	return nil
}

func (s *BreakerStore) Load(ctx context.Context) (tally.Snapshot, bool, error) {
	if !s.cb.TryAcquirePermit() {
		return tally.Snapshot{}, false, fmt.Errorf("snapshot load skipped: %w", circuitbreaker.ErrOpen)
	}

	snap, ok, err := s.inner.Load(ctx)
	if err != nil {
		s.cb.RecordError(err)
		return tally.Snapshot{}, false, err
	}
	s.cb.RecordSuccess()
	return snap, ok, nil
}

// Ping bypasses the breaker so readiness reflects the actual backend.
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}
