package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the configuration for the in-memory cache.
type Config struct {
	// DefaultTTL is the default time-to-live for cache entries.
	DefaultTTL time.Duration
	// CleanupInterval is how often expired entries are swept. Zero disables the sweeper.
	CleanupInterval time.Duration
	// MaxItems is the maximum number of entries. Zero means unbounded.
	MaxItems int
	// OnEviction is called when an entry is evicted or expires.
	OnEviction func(key string, value any)
}

type item struct {
	value      any
	expiration int64
}

func (i *item) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

// Cache is a thread-safe in-memory cache with TTL expiry.
type Cache struct {
	data      sync.Map
	itemCount atomic.Int64
	config    Config
	stopChan  chan struct{}
	closeOnce sync.Once
}

// New creates a new memory cache with the given configuration.
func New(config Config) *Cache {
	c := &Cache{
		config:   config,
		stopChan: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Set adds a value to the cache with the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	c.SetWithTTL(ctx, key, value, c.config.DefaultTTL)
}

// SetWithTTL adds a value to the cache with a custom TTL. A non-positive TTL never expires.
func (c *Cache) SetWithTTL(_ context.Context, key string, value any, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	if _, loaded := c.data.Swap(key, &item{value: value, expiration: expiration}); loaded {
		return
	}
	if n := c.itemCount.Add(1); c.config.MaxItems > 0 && int(n) > c.config.MaxItems {
		c.evictOne(key)
	}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (any, bool) {
	v, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	if it.expired(time.Now().UnixNano()) {
		c.remove(key, it)
		return nil, false
	}
	return it.value, true
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) {
	if v, ok := c.data.LoadAndDelete(key); ok {
		c.itemCount.Add(-1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, v.(*item).value)
		}
	}
}

// Clear removes all values from the cache.
func (c *Cache) Clear(ctx context.Context) {
	c.data.Range(func(key, _ any) bool {
		c.Delete(ctx, key.(string))
		return true
	})
}

// Size returns the number of entries in the cache, including ones not yet swept.
func (c *Cache) Size() int64 {
	return c.itemCount.Load()
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() { close(c.stopChan) })
	return nil
}

func (c *Cache) remove(key string, it *item) {
	if c.data.CompareAndDelete(key, it) {
		c.itemCount.Add(-1)
		if c.config.OnEviction != nil {
			c.config.OnEviction(key, it.value)
		}
	}
}

// evictOne drops an expired entry if there is one, otherwise the entry
// closest to expiry. keep is never evicted.
func (c *Cache) evictOne(keep string) {
	now := time.Now().UnixNano()
	var (
		victimKey string
		victim    *item
	)
	c.data.Range(func(key, value any) bool {
		if key.(string) == keep {
			return true
		}
		it := value.(*item)
		if it.expired(now) {
			victimKey, victim = key.(string), it
			return false
		}
		if victim == nil || (it.expiration > 0 && (victim.expiration == 0 || it.expiration < victim.expiration)) {
			victimKey, victim = key.(string), it
		}
		return true
	})
	if victim != nil {
		c.remove(victimKey, victim)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Cache) deleteExpired() {
	now := time.Now().UnixNano()
	c.data.Range(func(key, value any) bool {
		if it := value.(*item); it.expired(now) {
			c.remove(key.(string), it)
		}
		return true
	})
}
