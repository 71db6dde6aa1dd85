package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates an in-process cache with a default expiration time
// of one hour, purging expired items every 10 minutes.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(1*time.Hour, 10*time.Minute),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if x, found := c.cache.Get(key); found {
		return x.([]byte), true
	}
	return nil, false
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

var _ Cache = &MemoryCache{}
