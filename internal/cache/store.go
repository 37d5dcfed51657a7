package cache

import (
	"context"
	"time"
)

// KV is the slice of the relational store the persistent backend needs.
// Declaring it here keeps the dependency pointing store -> cache only at
// the interface level; the store package implements it.
type KV interface {
	CacheGet(ctx context.Context, key string) (value []byte, expiresAt time.Time, ok bool, err error)
	CacheSet(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	CacheDeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// StoreBacked persists cached responses in the relational store's
// api_cache table, so TTL windows survive across CLI invocations. This is
// what makes a cron schedule tighter than the TTL effectively free.
type StoreBacked struct {
	kv KV
}

// NewStoreBacked wraps a store in the Cache interface.
func NewStoreBacked(kv KV) *StoreBacked {
	return &StoreBacked{kv: kv}
}

// Get returns the value if present and not expired. Expired rows are left
// for DeleteExpired; reads stay cheap.
func (s *StoreBacked) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, expiresAt, ok, err := s.kv.CacheGet(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if time.Now().After(expiresAt) {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores a value with a TTL.
func (s *StoreBacked) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.kv.CacheSet(ctx, key, value, time.Now().Add(ttl))
}

// DeleteExpired removes rows whose expiry has passed.
func (s *StoreBacked) DeleteExpired(ctx context.Context) (int, error) {
	n, err := s.kv.CacheDeleteExpired(ctx, time.Now())
	return int(n), err
}

// Close is a no-op; the store owns its own lifecycle.
func (s *StoreBacked) Close() error { return nil }
