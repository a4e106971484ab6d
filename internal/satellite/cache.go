package satellite

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// BaselineCache keeps recent observations per grid cell so validation can
// degrade to cached signal when the backend is down. Implementations:
// MemoryCache (TTL + LRU) and RedisCache.
type BaselineCache interface {
	Get(ctx context.Context, key string) (Observation, bool, error)
	Set(ctx context.Context, key string, obs Observation) error
}

// MemoryCache is a thread-safe LRU cache with per-entry TTL.
type MemoryCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock

	mu      sync.Mutex
	entries map[string]*cacheEntry
	head    *cacheEntry // most recently used
	tail    *cacheEntry // least recently used
}

type cacheEntry struct {
	key      string
	value    Observation
	storedAt time.Time
	prev     *cacheEntry
	next     *cacheEntry
}

// NewMemoryCache creates a cache holding up to maxEntries observations for up
// to ttl each. clock may be nil, which uses the real clock.
func NewMemoryCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*cacheEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Observation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Observation{}, false, nil
	}
	if c.clock.Since(e.storedAt) > c.ttl {
		c.remove(e)
		delete(c.entries, key)
		return Observation{}, false, nil
	}
	c.moveToFront(e)
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, obs Observation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = obs
		e.storedAt = c.clock.Now()
		c.moveToFront(e)
		return nil
	}

	e := &cacheEntry{key: key, value: obs, storedAt: c.clock.Now()}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

func (c *MemoryCache) moveToFront(e *cacheEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *MemoryCache) addToFront(e *cacheEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *MemoryCache) remove(e *cacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *MemoryCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
