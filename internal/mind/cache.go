package mind

import (
	"fmt"
	"sync"
	"time"
)

// MaxCacheEntries — cap on memoized composed contexts before eviction.
const MaxCacheEntries = 1000

type cacheEntry struct {
	content string
	hash    string
	at      time.Time
}

// ContextCache memoizes composed context strings per (server, user), keyed by
// a content-derived fingerprint. Safe for concurrent use.
type ContextCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewContextCache creates an empty cache.
func NewContextCache() *ContextCache {
	return &ContextCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func cacheKey(serverID, userID string) string {
	return serverID + ":" + userID
}

// Fingerprint derives a cheap change-detection hash for a context: item
// counts, approximate size and the last summarization stamp. Not
// cryptographic — just enough to notice "something changed". Caller holds the
// context lock.
func Fingerprint(counts ItemCounts, rc *RichContext) string {
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%d",
		counts.EmbarrassingMoments, counts.CodeSnippets, counts.RunningGags,
		counts.SummarizedFacts, counts.Conversations,
		rc.approximateSize, rc.lastSummarization.UnixNano())
}

// Get returns the cached content when the stored fingerprint still matches.
func (c *ContextCache) Get(serverID, userID, hash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(serverID, userID)]
	if !ok || e.hash != hash {
		return "", false
	}
	return e.content, true
}

// Put stores composed content and evicts the oldest entries once the cache
// exceeds MaxCacheEntries.
func (c *ContextCache) Put(serverID, userID, hash, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(serverID, userID)] = cacheEntry{content: content, hash: hash, at: c.now()}
	for len(c.entries) > MaxCacheEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.at.Before(oldest) {
				oldestKey = k
				oldest = e.at
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Invalidate drops one (server, user) entry.
func (c *ContextCache) Invalidate(serverID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(serverID, userID))
}

// Clear drops everything (used by aggressive cleanup under memory pressure).
func (c *ContextCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of cached entries.
func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
