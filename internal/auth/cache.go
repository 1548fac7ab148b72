package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// AuthCache is a TTL-based in-memory cache with stale-while-revalidate.
// Uses sync.Map for lock-free reads on the hot path.
type AuthCache struct {
	store sync.Map // map[string]*cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	client     *ClientContext
	expiresAt  time.Time
	refreshing atomic.Bool
}

// AuthCacheGetResult holds the result of a cache lookup.
type AuthCacheGetResult struct {
	Client       *ClientContext
	Hit          bool
	NeedsRefresh bool
}

// NewAuthCache creates a cache with the given TTL.
func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{ttl: ttl}
}

// Get performs a non-blocking cache lookup.
// Returns stale entries with NeedsRefresh=true when expired.
func (c *AuthCache) Get(apiKey string) AuthCacheGetResult {
	val, ok := c.store.Load(apiKey)
	if !ok {
		return AuthCacheGetResult{Hit: false}
	}

	entry := val.(*cacheEntry)
	now := time.Now()

	if now.Before(entry.expiresAt) {
		return AuthCacheGetResult{
			Client: entry.client,
			Hit:    true,
		}
	}

	// Stale hit — signal refresh needed (only one goroutine wins the CAS)
	needsRefresh := entry.refreshing.CompareAndSwap(false, true)
	return AuthCacheGetResult{
		Client:       entry.client,
		Hit:          true,
		NeedsRefresh: needsRefresh,
	}
}

// Set stores a client context with a fresh TTL.
func (c *AuthCache) Set(apiKey string, client *ClientContext) {
	c.store.Store(apiKey, &cacheEntry{
		client:    client,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes an entry from the cache.
func (c *AuthCache) Delete(apiKey string) {
	c.store.Delete(apiKey)
}
