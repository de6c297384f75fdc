package renderer

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// Cache holds successful renders in memory for a fixed TTL. Entries are
// immutable once stored; expired entries are dropped lazily on read.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   scoring.Clock
}

type cacheEntry struct {
	result   scoring.RenderResult
	storedAt time.Time
}

// CacheStats describes the cache's current population.
type CacheStats struct {
	TotalEntries   int           `json:"total_entries"`
	ValidEntries   int           `json:"valid_entries"`
	ExpiredEntries int           `json:"expired_entries"`
	TTL            time.Duration `json:"-"`
}

// NewCache creates a render cache with the given TTL.
func NewCache(ttl time.Duration, clock scoring.Clock) *Cache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		entries: map[string]cacheEntry{},
		ttl:     ttl,
		clock:   clock,
	}
}

// Get returns the cached render for url if present and unexpired. The
// returned copy is flagged as cache-sourced.
func (c *Cache) Get(url string) (scoring.RenderResult, bool) {
	key := cacheKey(url)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return scoring.RenderResult{}, false
	}
	if c.clock.Now().After(entry.storedAt.Add(c.ttl)) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return scoring.RenderResult{}, false
	}

	result := entry.result
	result.FromCache = true
	return result, true
}

// Put stores a render result. Failed renders are not cached so the next
// request can retry.
func (c *Cache) Put(url string, result scoring.RenderResult) {
	if !result.Success {
		return
	}
	c.mu.Lock()
	c.entries[cacheKey(url)] = cacheEntry{result: result, storedAt: c.clock.Now()}
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = map[string]cacheEntry{}
	c.mu.Unlock()
}

// Stats reports entry counts without evicting anything.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	stats := CacheStats{TotalEntries: len(c.entries), TTL: c.ttl}
	for _, entry := range c.entries {
		if now.After(entry.storedAt.Add(c.ttl)) {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
