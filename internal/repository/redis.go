package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// VersionKey tracks the global leaderboard version for efficient change detection
	VersionKey = "leaderboard:version"

	// LastChangeKey holds the id of the entry touched by the latest change
	LastChangeKey = "leaderboard:last_change"

	// LastChangeAtKey holds the unix-nano time of the latest change
	LastChangeAtKey = "leaderboard:last_change_at"
)

// RedisRepository publishes leaderboard change markers. It holds no
// leaderboard data; clients re-read from the database when the version moves.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// RecordChange bumps the version and remembers which entry changed
func (r *RedisRepository) RecordChange(ctx context.Context, entryID string) error {
	pipe := r.client.TxPipeline()

	pipe.Incr(ctx, VersionKey)
	pipe.Set(ctx, LastChangeKey, entryID, 0)
	pipe.Set(ctx, LastChangeAtKey, time.Now().UnixNano(), 0)

	_, err := pipe.Exec(ctx)
	return err
}

// GetLeaderboardVersion returns the current global version number
func (r *RedisRepository) GetLeaderboardVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // Version not set yet, return 0
		}
		return 0, err
	}
	return version, nil
}

// GetLastChange returns the entry id of the latest change, or "" if none
func (r *RedisRepository) GetLastChange(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, LastChangeKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
