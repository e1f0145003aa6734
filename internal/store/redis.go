package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatwire/chatwire/internal/models"
)

const onlineSnapshotTTL = 5 * time.Minute

// RedisStore handles Redis operations: rate limiting counters, IP blocks,
// and the per-room online-user snapshot cache. All of its data is
// reconstructable; Redis being down degrades features, never correctness.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying redis client for middleware that operates
// on raw keys (rate limiter, IP blocker).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// roomOnlineKey returns the key for a room's online-user snapshot.
func roomOnlineKey(roomID int64) string {
	return fmt.Sprintf("room:%d:online", roomID)
}

// SetRoomOnlineUsers caches the online-user snapshot for a room.
// Best-effort; callers ignore the error beyond logging.
func (s *RedisStore) SetRoomOnlineUsers(ctx context.Context, roomID int64, users []models.Identity) error {
	data, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, roomOnlineKey(roomID), data, onlineSnapshotTTL).Err()
}

// GetRoomOnlineUsers returns the cached online-user snapshot for a room,
// or nil when no snapshot exists.
func (s *RedisStore) GetRoomOnlineUsers(ctx context.Context, roomID int64) ([]models.Identity, error) {
	data, err := s.client.Get(ctx, roomOnlineKey(roomID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var users []models.Identity
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	return users, nil
}
