package catalog

import (
	"container/list"
	"sync"
	"time"

	"github.com/upb/governance-engine/models"
)

// cacheKey identifies one policy lookup scope
func cacheKey(q models.PolicyQuery) string {
	key := q.ResourceType + "|" + q.ResourceID + "|"
	if q.UserID != nil {
		key += q.UserID.String()
	}
	return key + "|" + q.TeamID + "|" + q.Department
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        string
	policies   []*models.AccessControlPolicy
	insertedAt time.Time
	element    *list.Element // For LRU tracking
}

// isExpired checks if the cache entry has expired
func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// PolicyCache is an in-memory LRU cache with TTL for policy lookups.
// Thread-safe implementation using sync.Mutex.
type PolicyCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List    // Doubly linked list for LRU tracking
	maxSize int           // Maximum number of entries
	ttl     time.Duration // Time-to-live for entries
	hits    uint64
	misses  uint64
}

// NewPolicyCache creates a new PolicyCache with specified max size and TTL
func NewPolicyCache(maxSize int, ttl time.Duration) *PolicyCache {
	return &PolicyCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves policies for a query from cache.
// Returns nil, false if not found or expired.
func (c *PolicyCache) Get(q models.PolicyQuery) ([]*models.AccessControlPolicy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := cacheKey(q)
	entry, exists := c.entries[keyStr]

	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeEntry(keyStr)
		}
		return nil, false
	}

	// Move to front (most recently used)
	c.lruList.MoveToFront(entry.element)
	c.hits++

	return entry.policies, true
}

// Set stores a query's policies in cache
func (c *PolicyCache) Set(q models.PolicyQuery, policies []*models.AccessControlPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := cacheKey(q)

	if entry, exists := c.entries[keyStr]; exists {
		entry.policies = policies
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	// Evict least recently used entry if cache is full
	if c.lruList.Len() >= c.maxSize {
		c.evictLRU()
	}

	entry := &cacheEntry{
		key:        keyStr,
		policies:   policies,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(keyStr)
	c.entries[keyStr] = entry
}

// Clear removes all entries. Any policy or config mutation invalidates the
// whole cache: scope dimensions overlap too much for targeted eviction to
// be safe.
func (c *PolicyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns cache statistics
func (c *PolicyCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:    c.lruList.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *PolicyCache) removeEntry(keyStr string) {
	if entry, exists := c.entries[keyStr]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, keyStr)
	}
}

// evictLRU evicts the least recently used entry (must be called with lock held)
func (c *PolicyCache) evictLRU() {
	backElement := c.lruList.Back()
	if backElement != nil {
		keyStr := backElement.Value.(string)
		c.lruList.Remove(backElement)
		delete(c.entries, keyStr)
	}
}

// CleanupExpired removes all expired entries
func (c *PolicyCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredKeys := make([]string, 0)
	for keyStr, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			expiredKeys = append(expiredKeys, keyStr)
		}
	}
	for _, keyStr := range expiredKeys {
		c.removeEntry(keyStr)
	}

	return len(expiredKeys)
}

// StartCleanupWorker starts a background worker to periodically clean up expired entries
func (c *PolicyCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired()
		case <-stopCh:
			return
		}
	}
}
