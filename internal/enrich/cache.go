package enrich

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache is a thread-safe LRU cache whose entries expire after a TTL.
type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the specified size and TTL.
func NewCache[V any](maxSize int, ttl time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Cache[V]{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a value from the cache.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[V])
	if c.now().After(entry.expiresAt) {
		c.remove(elem)
		return zero, false
	}

	c.order.MoveToFront(elem)
	return entry.value, true
}

// Set stores a value with the cache's default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}

	c.items[key] = c.order.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Delete removes a key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Clear removes all entries from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the current number of entries in the cache.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// remove must be called with the lock held.
func (c *Cache[V]) remove(elem *list.Element) {
	entry := c.order.Remove(elem).(*cacheEntry[V])
	delete(c.items, entry.key)
}
