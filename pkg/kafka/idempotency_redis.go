package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore is a Redis-backed implementation of IdempotencyStore.
// Use it when multiple instances consume the same topics: the SET NX write
// makes the first processor win across the fleet.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store. Keys are
// namespaced under the given prefix and expire after the TTL.
func NewRedisIdempotencyStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisIdempotencyStore) key(eventID string) string {
	return fmt.Sprintf("%s:seen:%s", s.keyPrefix, eventID)
}

// Contains checks if the event ID has been recorded and not yet expired.
func (s *RedisIdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check idempotency key: %w", err)
	}
	return n > 0, nil
}

// Add records the event ID with the configured TTL. SET NX keeps the original
// timestamp when two processors race.
func (s *RedisIdempotencyStore) Add(ctx context.Context, eventID string) error {
	if err := s.client.SetNX(ctx, s.key(eventID), time.Now().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("record idempotency key: %w", err)
	}
	return nil
}
