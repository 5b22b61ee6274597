package store

import (
	"github.com/hrygo/apptscheduler/internal/profile"
	"github.com/hrygo/apptscheduler/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// referenceCache holds reference tables only; appointments are never cached.
	referenceCache *cache.TieredCache
}

// New creates a new instance of Store. A nil referenceCache gets a memory-only cache.
func New(driver Driver, profile *profile.Profile, referenceCache *cache.TieredCache) *Store {
	if referenceCache == nil {
		referenceCache = cache.NewTieredCache(cache.DefaultTieredConfig(), nil)
	}
	return &Store{
		driver:         driver,
		profile:        profile,
		referenceCache: referenceCache,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// CacheStats returns statistics of the reference cache.
func (s *Store) CacheStats() map[string]interface{} {
	return s.referenceCache.Stats()
}

func (s *Store) Close() error {
	if err := s.referenceCache.Close(); err != nil {
		return err
	}
	return s.driver.Close()
}
