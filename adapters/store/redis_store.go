package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the Store and NonceLedger interfaces
type RedisStore struct {
	client      *redis.Client
	prefix      string
	noncePrefix string
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:      client,
		prefix:      "walletgate:invalidated:",
		noncePrefix: "walletgate:nonce:",
	}
}

// InvalidateToken marks a token as invalidated in Redis
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	key := s.prefix + tokenID

	// Set key with expiration
	if err := s.client.Set(ctx, key, "1", minTTL(expiry)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

// IsTokenInvalidated checks if a token is invalidated in Redis
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	key := s.prefix + tokenID

	// Check if key exists
	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}

// Consume atomically records the binding as used.
// SETNX makes concurrent attempts with the same binding race to a single winner.
func (s *RedisStore) Consume(ctx context.Context, bindingID string, expiry time.Duration) (bool, error) {
	key := s.noncePrefix + bindingID

	first, err := s.client.SetNX(ctx, key, "1", minTTL(expiry)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume nonce: %w", err)
	}

	return first, nil
}

// Redis rejects non-positive expirations on SET, and a zero TTL means "keep forever"
func minTTL(expiry time.Duration) time.Duration {
	if expiry < time.Second {
		return time.Second
	}
	return expiry
}
