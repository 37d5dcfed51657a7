// Package cache stores raw source responses keyed by request fingerprint,
// so repeat pulls inside a TTL window cost zero API requests.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// TTLs by payload volatility. Rosters move slowly; schedules flip daily;
// anything covering games in progress goes stale in minutes.
const (
	TTLRosters = 24 * time.Hour
	TTLGames   = 1 * time.Hour
	TTLLive    = 10 * time.Minute
)

// Cache is a TTL key-value store for raw response bytes. Implementations
// are safe for concurrent use. A miss is (nil, false, nil); errors are
// reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteExpired(ctx context.Context) (int, error)
	Close() error
}

// Fingerprint derives the cache key for a request: source, endpoint, and
// query parameters in canonical order, hashed so keys stay uniform and
// never leak API keys into logs or storage.
func Fingerprint(source, endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(source)
	b.WriteByte('|')
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
