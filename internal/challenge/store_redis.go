package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"idv/pkg/platform/sentinel"
)

const challengeKeyPrefix = "idv:challenge:"

// RedisStore is a Redis-backed challenge store. The server-supplied expiry
// doubles as the key TTL, so expired challenges vanish without a sweeper.
// Recommended when several instances serve the same embedding UI.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed challenge store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, key string, ch *Challenge) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	ttl := time.Until(ch.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired: %w", sentinel.ErrInvalidState)
	}
	return s.client.Set(ctx, challengeKeyPrefix+key, raw, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("challenge not found for key %q: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	var ch Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &ch, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, challengeKeyPrefix+key).Err()
}
