package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/konnexhq/identity-service/internal/domain"
	"github.com/konnexhq/identity-service/pkg/cachekeys"
)

// IdentityCacheAdapter implements domain.IdentityCacheStore on Redis.
//
// Each entry is stored as a JSON envelope carrying the value plus its write
// timestamp. The entry TTL is enforced by the timestamp check on read; the
// Redis key TTL is set to the same duration as a backstop so that entries
// nobody reads again still get evicted by the server.
type IdentityCacheAdapter struct {
	redisClient *redis.Client
	logger      domain.Logger
	ttl         time.Duration
	now         func() time.Time
}

// NewIdentityCacheAdapter creates a new IdentityCacheAdapter. A zero ttl
// falls back to domain.DefaultEntryTTL.
func NewIdentityCacheAdapter(redisClient *redis.Client, logger domain.Logger, ttl time.Duration) *IdentityCacheAdapter {
	if redisClient == nil {
		panic("redisClient cannot be nil in NewIdentityCacheAdapter")
	}
	if logger == nil {
		panic("logger cannot be nil in NewIdentityCacheAdapter")
	}
	if ttl <= 0 {
		ttl = domain.DefaultEntryTTL
	}
	return &IdentityCacheAdapter{
		redisClient: redisClient,
		logger:      logger,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Get retrieves the value stored under key, treating expired entries as
// absent and purging them before returning.
func (a *IdentityCacheAdapter) Get(ctx context.Context, key string) (json.RawMessage, error) {
	val, err := a.redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		a.logger.Debug(ctx, "Identity cache miss", "key", key)
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		a.logger.Warn(ctx, "Identity cache read failed", "key", key, "error", err.Error())
		return nil, fmt.Errorf("%w: GET %q: %v", domain.ErrCacheUnavailable, key, err)
	}

	var entry domain.CacheEntry
	if err = json.Unmarshal([]byte(val), &entry); err != nil {
		a.logger.Warn(ctx, "Identity cache entry is not a valid envelope", "key", key, "error", err.Error())
		return nil, fmt.Errorf("%w: decode entry %q: %v", domain.ErrCacheUnavailable, key, err)
	}

	if entry.Expired(a.now(), a.ttl) {
		// Lazy eviction so the next read short-circuits without
		// deserializing the payload again.
		if delErr := a.redisClient.Del(ctx, key).Err(); delErr != nil {
			a.logger.Warn(ctx, "Failed to purge expired identity cache entry", "key", key, "error", delErr.Error())
		}
		a.logger.Debug(ctx, "Identity cache entry expired", "key", key, "written_at_ms", entry.Timestamp)
		return nil, domain.ErrCacheMiss
	}

	a.logger.Debug(ctx, "Identity cache hit", "key", key)
	return entry.Value, nil
}

// Set wraps value with the current timestamp and writes the entry.
func (a *IdentityCacheAdapter) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		a.logger.Warn(ctx, "Failed to marshal value for identity cache", "key", key, "error", err.Error())
		return fmt.Errorf("%w: marshal value for %q: %v", domain.ErrCacheUnavailable, key, err)
	}

	entry := domain.CacheEntry{
		Value:     raw,
		Timestamp: a.now().UnixMilli(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: marshal entry for %q: %v", domain.ErrCacheUnavailable, key, err)
	}

	if err = a.redisClient.Set(ctx, key, string(payload), a.ttl).Err(); err != nil {
		a.logger.Warn(ctx, "Identity cache write failed", "key", key, "error", err.Error())
		return fmt.Errorf("%w: SET %q: %v", domain.ErrCacheUnavailable, key, err)
	}

	a.logger.Debug(ctx, "Identity cache entry written", "key", key, "ttl", a.ttl.String())
	return nil
}

// Remove deletes a single entry. Absent keys are not an error.
func (a *IdentityCacheAdapter) Remove(ctx context.Context, key string) error {
	if err := a.redisClient.Del(ctx, key).Err(); err != nil {
		a.logger.Warn(ctx, "Identity cache delete failed", "key", key, "error", err.Error())
		return fmt.Errorf("%w: DEL %q: %v", domain.ErrCacheUnavailable, key, err)
	}
	return nil
}

// Clear deletes every key in the identity cache namespace. It scans rather
// than FLUSHing so other tenants of the Redis database are untouched.
func (a *IdentityCacheAdapter) Clear(ctx context.Context) error {
	var cursor uint64
	var cleared int
	for {
		keys, next, err := a.redisClient.Scan(ctx, cursor, cachekeys.ScanPattern(), 100).Result()
		if err != nil {
			a.logger.Warn(ctx, "Identity cache clear scan failed", "error", err.Error())
			return fmt.Errorf("%w: SCAN %q: %v", domain.ErrCacheUnavailable, cachekeys.ScanPattern(), err)
		}
		if len(keys) > 0 {
			if err := a.redisClient.Del(ctx, keys...).Err(); err != nil {
				a.logger.Warn(ctx, "Identity cache clear delete failed", "error", err.Error())
				return fmt.Errorf("%w: DEL during clear: %v", domain.ErrCacheUnavailable, err)
			}
			cleared += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	a.logger.Info(ctx, "Identity cache cleared", "keys_removed", cleared)
	return nil
}
