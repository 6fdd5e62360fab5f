// Package memstore provides an in-process implementation of the identity
// cache store. It backs tests and serves as the degraded fallback when Redis
// is not configured: the service still resolves identities correctly, it
// just loses cache persistence across restarts.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/cachekeys"
)

// MemoryCacheAdapter implements domain.IdentityCacheStore with a mutex-guarded
// map. The clock is injectable so TTL behavior is testable without sleeping.
type MemoryCacheAdapter struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCacheAdapter creates an empty in-memory cache. A zero ttl falls
// back to domain.DefaultEntryTTL.
func NewMemoryCacheAdapter(ttl time.Duration) *MemoryCacheAdapter {
	if ttl <= 0 {
		ttl = domain.DefaultEntryTTL
	}
	return &MemoryCacheAdapter{
		entries: make(map[string]domain.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the adapter's time source. Intended for tests.
func (a *MemoryCacheAdapter) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// Get returns the stored value, purging and missing on expired entries.
func (a *MemoryCacheAdapter) Get(_ context.Context, key string) (json.RawMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if entry.Expired(a.now(), a.ttl) {
		delete(a.entries, key)
		return nil, domain.ErrCacheMiss
	}
	return entry.Value, nil
}

// Set wraps value with the current timestamp and overwrites the entry.
func (a *MemoryCacheAdapter) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: marshal value for %q: %v", domain.ErrCacheUnavailable, key, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[key] = domain.CacheEntry{
		Value:     raw,
		Timestamp: a.now().UnixMilli(),
	}
	return nil
}

// Remove deletes a single entry; absent keys are fine.
func (a *MemoryCacheAdapter) Remove(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, key)
	return nil
}

// Clear drops every entry in the identity namespace.
func (a *MemoryCacheAdapter) Clear(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for key := range a.entries {
		if cachekeys.InNamespace(key) {
			delete(a.entries, key)
		}
	}
	return nil
}

// Len reports how many entries are currently held, expired or not. Used by
// tests to assert on lazy eviction.
func (a *MemoryCacheAdapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}
