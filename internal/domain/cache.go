package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// DefaultEntryTTL is the fixed maximum age of a cache entry. There is no
// per-key override: the cache only ever holds slow-changing identity data
// (role and profile per user), and 24 hours matches how often a returning
// visitor should be re-validated at the latest.
const DefaultEntryTTL = 24 * time.Hour

var (
	// ErrCacheMiss means the key was never written, or its entry expired
	// and has been purged.
	ErrCacheMiss = errors.New("identity cache: key not found")

	// ErrCacheUnavailable wraps storage-layer failures (backend down,
	// serialization error). Callers that only care about hit-or-not can
	// treat it exactly like a miss; it exists so they can tell the two
	// apart when they want to.
	ErrCacheUnavailable = errors.New("identity cache: storage unavailable")
)

// CacheEntry wraps a cached value with its write time. An entry is valid
// while now - Timestamp <= ttl; anything older must be treated as absent and
// purged on read.
type CacheEntry struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds at write time
}

// Expired reports whether the entry is older than ttl at the given instant.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	written := time.UnixMilli(e.Timestamp)
	return now.Sub(written) > ttl
}

// IdentityCacheStore is durable, per-user-namespaced, TTL-bounded key-value
// storage for resolved identity data. Keys follow the pkg/cachekeys
// conventions (role_<uid>, profile_<uid>) so that entries for different users
// on a shared host never collide.
//
// The cache is a performance optimization, never a correctness requirement:
// the identity resolution provider must behave correctly (just without
// optimistic hydration) when every operation here fails. Implementations
// therefore log their own failures and return ErrCacheUnavailable rather
// than panicking or returning raw driver errors.
type IdentityCacheStore interface {
	// Get returns the stored value for key. It returns ErrCacheMiss when
	// the key was never written or its entry expired (expired entries are
	// deleted before returning, so raw storage no longer contains them),
	// and ErrCacheUnavailable on storage failure.
	Get(ctx context.Context, key string) (json.RawMessage, error)

	// Set wraps value with the current timestamp and writes or overwrites
	// the entry. On storage failure it returns ErrCacheUnavailable; it
	// never fails in a way the caller must handle.
	Set(ctx context.Context, key string, value any) error

	// Remove deletes a single entry. Removing an absent key is not an
	// error.
	Remove(ctx context.Context, key string) error

	// Clear deletes every entry in the cache namespace. Used on sign-out
	// and account deletion so a shared host never leaks a previous user's
	// identity. Clearing an empty cache is not an error.
	Clear(ctx context.Context) error
}
