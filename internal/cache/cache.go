package cache

import (
	"sync"
	"time"
)

// Item represents a cached value with expiration
type Item[T any] struct {
	Value      T
	Expiration time.Time
}

// Cache is a thread-safe in-memory TTL cache
type Cache[T any] struct {
	items map[string]Item[T]
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time

	// fill serializes GetOrSet loaders so one slow probe runs at a time
	fill sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a new cache with the specified default TTL and starts a
// janitor that runs until Close
func New[T any](ttl time.Duration) *Cache[T] {
	return newCache[T](ttl, time.Now)
}

func newCache[T any](ttl time.Duration, now func() time.Time) *Cache[T] {
	c := &Cache[T]{
		items: make(map[string]Item[T]),
		ttl:   ttl,
		now:   now,
		stop:  make(chan struct{}),
	}

	go c.cleanup(janitorInterval(ttl))

	return c
}

// TTL returns the default time to live
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Set stores a value in the cache with the default TTL
func (c *Cache[T]) Set(key string, value T) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL
func (c *Cache[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = Item[T]{
		Value:      value,
		Expiration: c.now().Add(ttl),
	}
}

// Get retrieves a value from the cache
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero T
	item, found := c.items[key]
	if !found {
		return zero, false
	}

	if c.now().After(item.Expiration) {
		return zero, false
	}

	return item.Value, true
}

// GetOrSet retrieves a value from cache or sets it using the provided function.
// Concurrent misses wait for a single call to fn.
func (c *Cache[T]) GetOrSet(key string, fn func() (T, error)) (T, error) {
	if value, found := c.Get(key); found {
		return value, nil
	}

	c.fill.Lock()
	defer c.fill.Unlock()

	if value, found := c.Get(key); found {
		return value, nil
	}

	value, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(key, value)
	return value, nil
}

// Delete removes a value from the cache
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]Item[T])
}

// Len returns the number of stored items, expired or not
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanup removes expired items periodically
func (c *Cache[T]) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *Cache[T]) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.Expiration) {
			delete(c.items, key)
		}
	}
}

func janitorInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > time.Minute {
		return time.Minute
	}
	return ttl
}

// KeyHealth is where the health checker keeps its last report
const KeyHealth = "health:cluster"
