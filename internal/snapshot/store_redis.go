package snapshot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pscheid92/colorpulse/internal/tally"
	goredis "github.com/redis/go-redis/v9"
)

const redisKey = "colorpulse:tally"

// Connect creates and verifies a go-redis client from a URL
// (e.g. "redis://localhost:6379").
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// RedisStore persists snapshots in a Redis hash so the tally survives both
// restarts and host changes.
type RedisStore struct {
	rdb *goredis.Client
}

func NewRedisStore(rdb *goredis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, snap tally.Snapshot) error {
	fields := flatten(snap)
	values := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		values[name] = strconv.FormatUint(value, 10)
	}

	if err := s.rdb.HSet(ctx, redisKey, values).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (tally.Snapshot, bool, error) {
	raw, err := s.rdb.HGetAll(ctx, redisKey).Result()
	if err != nil {
		return tally.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(raw) == 0 {
		return tally.Snapshot{}, false, nil
	}

	fields := make(map[string]uint64, len(raw))
	for name, value := range raw {
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return tally.Snapshot{}, false, fmt.Errorf("snapshot field %q has invalid value %q: %w", name, value, err)
		}
		fields[name] = parsed
	}
	return unflatten(fields), true, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
