package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the cache with a Redis instance, for deployments where
// several hosts share one rate-limit budget and should share the cache
// that protects it. Expiry is delegated to Redis TTLs.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps a Redis client. All keys are namespaced under prefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "sports-cli:cache"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

// Get returns the value if present; redis.Nil is a miss, not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value; Redis owns the TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

// DeleteExpired is a no-op: Redis evicts on its own.
func (r *Redis) DeleteExpired(context.Context) (int, error) { return 0, nil }

// Close releases the client connection.
func (r *Redis) Close() error { return r.client.Close() }
