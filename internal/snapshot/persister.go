package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/colorpulse/internal/metrics"
	"github.com/pscheid92/colorpulse/internal/tally"
)

const saveTimeout = 5 * time.Second

// Persister periodically copies the tally snapshot into the store, and makes
// one final save when stopped.
type Persister struct {
	store    Store
	tally    *tally.Tally
	clock    clockwork.Clock
	interval time.Duration
}

func NewPersister(store Store, tl *tally.Tally, clock clockwork.Clock, interval time.Duration) *Persister {
	return &Persister{
		store:    store,
		tally:    tl,
		clock:    clock,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled. Persistence failures are logged and
// counted, never fatal.
func (p *Persister) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final best-effort save after the accept loop has stopped.
			p.persist()
			return
		case <-ticker.Chan():
			p.persist()
		}
	}
}

func (p *Persister) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := p.store.Save(ctx, p.tally.Snapshot()); err != nil {
		metrics.SnapshotPersistsTotal.WithLabelValues("error").Inc()
		slog.Warn("snapshot persist failed", "error", err)
		return
	}
	metrics.SnapshotPersistsTotal.WithLabelValues("ok").Inc()
}
