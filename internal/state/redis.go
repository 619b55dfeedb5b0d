package state

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxhub/realtime/internal/metrics"
)

const keyPrefix = "state:"

// RedisStore implements KeyedStateStore on top of Redis. Each path maps to
// one key holding a JSON document; Once is a prefix scan over descendants.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
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

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the handshake rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func pathKey(path string) string {
	return keyPrefix + path
}

// Get reads the value at an exact path.
func (s *RedisStore) Get(ctx context.Context, path string, dest any) (bool, error) {
	defer observe(time.Now())

	data, err := s.client.Get(ctx, pathKey(path)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set writes the value at an exact path.
func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	defer observe(time.Now())

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pathKey(path), data, 0).Err()
}

// Update merges fields into the JSON object at path. Read-modify-write;
// concurrent updates are last-write-wins by design of the callers.
func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	defer observe(time.Now())

	obj := make(map[string]json.RawMessage)
	data, err := s.client.Get(ctx, pathKey(path)).Bytes()
	if err != nil && err != redis.Nil {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(data, &obj); err != nil {
			// Non-object value at path: replace it outright
			obj = make(map[string]json.RawMessage)
		}
	}

	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		obj[k] = raw
	}

	merged, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pathKey(path), merged, 0).Err()
}

// Remove deletes the path and every descendant under it.
func (s *RedisStore) Remove(ctx context.Context, path string) error {
	defer observe(time.Now())

	keys := []string{pathKey(path)}

	iter := s.client.Scan(ctx, 0, pathKey(path)+"/*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	return s.client.Del(ctx, keys...).Err()
}

// Once snapshots the children under path.
func (s *RedisStore) Once(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	defer observe(time.Now())

	prefix := pathKey(path) + "/"
	children := make(map[string]json.RawMessage)

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // expired between scan and read
		}
		if err != nil {
			return nil, err
		}
		children[strings.TrimPrefix(key, prefix)] = json.RawMessage(data)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return children, nil
}

func observe(start time.Time) {
	metrics.StateLatency.Observe(time.Since(start).Seconds())
}
