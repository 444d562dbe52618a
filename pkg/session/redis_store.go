package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of redis.UniversalClient used by RedisStore.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps each session as a JSON string under "<prefix>:<id>".
// Expiry is enforced by the key TTL.
type RedisStore struct {
	client RedisClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. prefix is normally the session
// cookie name.
func NewRedisStore(client RedisClient, prefix string) *RedisStore {
	if client == nil {
		panic("session: redis client is required")
	}
	if prefix == "" {
		prefix = DefaultName
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore) Save(ctx context.Context, id string, data Payload, ttl time.Duration) error {
	if id == "" {
		return ErrInvalidSessionID
	}

	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (Payload, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Payload{}, ErrSessionNotFound
		}
		return Payload{}, fmt.Errorf("failed to load session: %w", err)
	}

	var data Payload
	if err := json.Unmarshal(raw, &data); err != nil {
		return Payload{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return data, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
