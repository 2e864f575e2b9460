package classification

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
)

// DefaultPrefixLength is how many leading prompt characters feed the fingerprint
const DefaultPrefixLength = 200

// Fingerprint derives a cache key from the first prefixLen characters of
// prompt. It is order-dependent and case-sensitive.
func Fingerprint(prompt string, prefixLen int) string {
	runes := []rune(prompt)
	if prefixLen > 0 && len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return hex.EncodeToString(sum[:])
}

// cacheEntry represents a single cache entry with TTL
type cacheEntry struct {
	key        string
	result     models.ClassificationResult
	insertedAt time.Time
	element    *list.Element // position in insertion order
}

// Cache is a bounded classification cache with TTL. Eviction is by
// insertion order: reads never refresh an entry, and inserting into a
// full cache evicts the oldest-inserted entry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // front = newest insertion
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
	now     func() time.Time
}

// NewCache creates a new Cache with specified max size and TTL
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// valid reports whether the entry is still within its TTL
func (c *Cache) valid(e *cacheEntry) bool {
	return c.now().Sub(e.insertedAt) < c.ttl
}

// Get returns the cached result for key. Expired entries are removed and
// reported as absent.
func (c *Cache) Get(key string) (models.ClassificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists || !c.valid(entry) {
		c.misses++
		if exists {
			c.removeEntry(key)
		}
		return models.ClassificationResult{}, false
	}

	c.hits++
	return copyResult(entry.result), true
}

// Set stores result under key. Overwriting an existing key resets its
// timestamp and moves it to the newest insertion position.
func (c *Cache) Set(key string, result models.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.result = copyResult(result)
		entry.insertedAt = c.now()
		c.order.MoveToFront(entry.element)
		return
	}

	for c.order.Len() >= c.maxSize {
		c.evictOldest()
	}

	entry := &cacheEntry{
		key:        key,
		result:     copyResult(result),
		insertedAt: c.now(),
	}
	entry.element = c.order.PushFront(key)
	c.entries[key] = entry
}

// Invalidate removes a specific cache entry
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeEntry(key)
}

// Clear removes all entries from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet evicted
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return CacheStats{
		Size:    c.order.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: hitRate,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// removeEntry removes an entry from the cache (must be called with lock held)
func (c *Cache) removeEntry(key string) {
	if entry, exists := c.entries[key]; exists {
		c.order.Remove(entry.element)
		delete(c.entries, key)
	}
}

// evictOldest evicts the earliest-inserted entry (must be called with lock held)
func (c *Cache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	c.order.Remove(back)
	delete(c.entries, key)
}

// CleanupExpired removes all expired entries
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := make([]string, 0)
	for key, entry := range c.entries {
		if !c.valid(entry) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		c.removeEntry(key)
	}

	return len(expired)
}

// StartCleanupWorker periodically removes expired entries until stopCh is closed
func (c *Cache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
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

func copyResult(r models.ClassificationResult) models.ClassificationResult {
	if r.Indicators != nil {
		r.Indicators = append([]string(nil), r.Indicators...)
	}
	return r
}
