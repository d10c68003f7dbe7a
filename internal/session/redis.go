package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps each session in one Redis hash "{prefix}{sid}" that
// expires ttl after the last Save.
type RedisStorage struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a Redis-backed storage.
func NewRedisStorage(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStorage) key(sid string) string { return s.prefix + sid }

// Load reads the session hash. A missing hash yields an empty map.
func (s *RedisStorage) Load(ctx context.Context, sid string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, s.key(sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis hgetall %q: %w", s.key(sid), err)
	}
	return values, nil
}

// Save writes values and resets the expiry in one transaction.
func (s *RedisStorage) Save(ctx context.Context, sid string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	key := s.key(sid)
	args := make([]any, 0, 2*len(values))
	for k, v := range values {
		args = append(args, k, v)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, args...)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session: redis save %q: %w", key, err)
	}
	return nil
}

// Purge deletes hash fields. Redis drops the hash once it is empty.
func (s *RedisStorage) Purge(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.key(sid), keys...).Err(); err != nil {
		return fmt.Errorf("session: redis hdel %q: %w", s.key(sid), err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStorage) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session: redis ping: %w", err)
	}
	return nil
}
