package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// TieredCache implements a three-tier caching strategy:
// - L1: In-memory cache (fast, small, DEFAULT)
// - L2: Redis cache (moderate, shared, OPTIONAL)
// - L3: Database callback (slow, persistent)
//
// Only reference data (countries, divisions, contacts, users) goes through
// this cache. Appointments are always read fresh.
type TieredCache struct {
	l1        *Cache
	l2        RedisCacheInterface
	l1Enabled bool
	l2Enabled bool
}

// L3Fetcher is the function to fetch data from the database (L3).
type L3Fetcher func(ctx context.Context, key string) (any, error)

// TieredCacheConfig holds the configuration for the tiered cache.
type TieredCacheConfig struct {
	L1MaxItems int           // Max items in L1 memory cache
	L1TTL      time.Duration // TTL for L1 cache entries
	L2TTL      time.Duration // TTL for L2 Redis cache entries
	EnableL1   bool          // Enable L1 memory cache (default: true)
}

// DefaultTieredConfig returns the default tiered cache configuration.
func DefaultTieredConfig() *TieredCacheConfig {
	return &TieredCacheConfig{
		L1MaxItems: 1000,
		L1TTL:      10 * time.Minute,
		L2TTL:      30 * time.Minute,
		EnableL1:   true,
	}
}

// NewTieredCache creates a new three-tier cache. A nil l2 disables the Redis tier.
func NewTieredCache(config *TieredCacheConfig, l2 RedisCacheInterface) *TieredCache {
	if config == nil {
		config = DefaultTieredConfig()
	}

	tc := &TieredCache{
		l1Enabled: config.EnableL1,
		l2:        l2,
		l2Enabled: l2 != nil,
	}
	if config.EnableL1 {
		tc.l1 = New(Config{
			DefaultTTL:      config.L1TTL,
			CleanupInterval: 1 * time.Minute,
			MaxItems:        config.L1MaxItems,
		})
	}
	return tc
}

// Get retrieves a value from L1, then L2. Values found in L2 are returned as
// stored by the L2 implementation and promoted to L1.
func (t *TieredCache) Get(ctx context.Context, key string) (any, bool) {
	if t.l1Enabled && t.l1 != nil {
		if value, found := t.l1.Get(ctx, key); found {
			return value, true
		}
	}

	if t.l2Enabled && t.l2 != nil {
		if value, found := t.l2.Get(ctx, key); found {
			if t.l1Enabled && t.l1 != nil {
				t.l1.Set(ctx, key, value)
			}
			return value, true
		}
	}

	return nil, false
}

// GetOrFetch retrieves a value from the cache, falling back to the fetcher
// (L3) and populating both tiers on a miss.
func (t *TieredCache) GetOrFetch(ctx context.Context, key string, fetcher L3Fetcher) (any, error) {
	if value, found := t.Get(ctx, key); found {
		return value, nil
	}
	if fetcher == nil {
		return nil, errors.Errorf("cache miss for %q and no fetcher", key)
	}

	value, err := fetcher(ctx, key)
	if err != nil {
		return nil, err
	}
	t.Set(ctx, key, value)
	return value, nil
}

// Set stores a value in both L1 and L2.
func (t *TieredCache) Set(ctx context.Context, key string, value any) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.Set(ctx, key, value)
	}
	if t.l2Enabled && t.l2 != nil {
		t.l2.Set(ctx, key, value)
	}
}

// SetWithTTL stores a value with custom TTL.
func (t *TieredCache) SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.SetWithTTL(ctx, key, value, ttl)
	}
	if t.l2Enabled && t.l2 != nil {
		t.l2.SetWithTTL(ctx, key, value, ttl)
	}
}

// Delete removes a value from both L1 and L2.
func (t *TieredCache) Delete(ctx context.Context, key string) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.Delete(ctx, key)
	}
	if t.l2Enabled && t.l2 != nil {
		t.l2.Delete(ctx, key)
	}
}

// Invalidate removes a value and optionally refreshes it.
func (t *TieredCache) Invalidate(ctx context.Context, key string, fetcher L3Fetcher) error {
	t.Delete(ctx, key)

	if fetcher != nil {
		value, err := fetcher(ctx, key)
		if err != nil {
			return err
		}
		t.Set(ctx, key, value)
	}

	return nil
}

// Clear clears all caches.
func (t *TieredCache) Clear(ctx context.Context) {
	if t.l1Enabled && t.l1 != nil {
		t.l1.Clear(ctx)
	}
	if t.l2Enabled && t.l2 != nil {
		t.l2.Clear(ctx)
	}
}

// Stats returns cache statistics.
func (t *TieredCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1_enabled": t.l1Enabled && t.l1 != nil,
		"l2_enabled": t.l2Enabled && t.l2 != nil,
	}
	if t.l1 != nil {
		stats["l1_size"] = t.l1.Size()
	}
	return stats
}

// Close closes all cache connections.
func (t *TieredCache) Close() error {
	var errs []error

	if t.l2 != nil {
		if err := t.l2.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.l1 != nil {
		if err := t.l1.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Errorf("multiple errors: %v", errs)
	}
	return nil
}
