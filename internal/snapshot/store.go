// Package snapshot persists the vote tally across restarts. The tally itself
// is in-memory; persistence is a best-effort periodic copy plus a final save
// on shutdown, never on the vote hot path.
package snapshot

import (
	"context"

	"github.com/pscheid92/colorpulse/internal/tally"
)

// Store persists tally snapshots.
type Store interface {
	// Save overwrites the persisted snapshot.
	Save(ctx context.Context, snap tally.Snapshot) error
	// Load returns the persisted snapshot. ok is false when nothing has been
	// persisted yet.
	Load(ctx context.Context) (snap tally.Snapshot, ok bool, err error)
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

const (
	totalField      = "total"
	totalUsersField = "total_users"
)

// flatten converts a snapshot into the flat field map shared by the file and
// Redis stores. The concurrent-user gauge is intentionally not persisted.
func flatten(snap tally.Snapshot) map[string]uint64 {
	fields := make(map[string]uint64, len(snap.Counts)+2)
	for color, value := range snap.Counts {
		fields[color] = value
	}
	fields[totalField] = snap.Total
	fields[totalUsersField] = snap.TotalUsers
	return fields
}

func unflatten(fields map[string]uint64) tally.Snapshot {
	snap := tally.Snapshot{Counts: make(map[string]uint64, len(fields))}
	for name, value := range fields {
		switch name {
		case totalField:
			snap.Total = value
		case totalUsersField:
			snap.TotalUsers = value
		default:
			snap.Counts[name] = value
		}
	}
	return snap
}
