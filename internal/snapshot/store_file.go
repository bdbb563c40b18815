package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pscheid92/colorpulse/internal/tally"
)

// FileStore persists snapshots as a JSON file on local disk. This is the
// single-instance default when no Redis URL is configured.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Save(_ context.Context, snap tally.Snapshot) error {
	data, err := json.Marshal(flatten(snap))
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	// Write-then-rename so a crash mid-write never corrupts the saved state.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context) (tally.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return tally.Snapshot{}, false, nil
	}
	if err != nil {
		return tally.Snapshot{}, false, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var fields map[string]uint64
	if err := json.Unmarshal(data, &fields); err != nil {
		return tally.Snapshot{}, false, fmt.Errorf("snapshot file %s is corrupt: %w", s.path, err)
	}
	return unflatten(fields), true, nil
}

func (s *FileStore) Ping(context.Context) error {
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("snapshot directory unavailable: %w", err)
	}
	return nil
}
