package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader combines a Cache with request coalescing: when several workers
// miss the same key at once, exactly one fetch runs and the rest share its
// result. Failed fetches are returned to every waiter and never cached.
type Loader struct {
	cache Cache
	group singleflight.Group
}

// NewLoader wraps a cache backend.
func NewLoader(c Cache) *Loader {
	return &Loader{cache: c}
}

// GetOrFetch returns the cached value for key, or runs fetch once to fill
// it. The second return reports whether the value came from cache. Cache
// backend failures degrade to a direct fetch rather than failing the call.
func (l *Loader) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if data, ok, err := l.cache.Get(ctx, key); err != nil {
		zap.L().Warn("cache: read failed, fetching directly", zap.Error(err))
	} else if ok {
		return data, true, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		// A coalesced waiter may arrive after the winner already filled
		// the key; check again before spending a request.
		if data, ok, err := l.cache.Get(ctx, key); err == nil && ok {
			return data, nil
		}
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, key, data, ttl); err != nil {
			zap.L().Warn("cache: write failed", zap.Error(err))
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// DeleteExpired forwards to the backend sweep.
func (l *Loader) DeleteExpired(ctx context.Context) (int, error) {
	return l.cache.DeleteExpired(ctx)
}

// Close releases the backend.
func (l *Loader) Close() error {
	return l.cache.Close()
}
