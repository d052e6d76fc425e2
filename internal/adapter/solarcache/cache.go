// Package solarcache memoizes clear-sky day kernels.
package solarcache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// CachedKernel wraps a Kernel with an in-memory LRU cache keyed by UTC day.
// It is safe for concurrent use by member workers.
type CachedKernel struct {
	inner   domain.Kernel
	cache   *lruCache
	lookups *prometheus.CounterVec // labels: result={hit,miss}; may be nil
}

// NewCachedKernel creates a cache decorator around a kernel.
func NewCachedKernel(inner domain.Kernel, maxEntries int, lookups *prometheus.CounterVec) *CachedKernel {
	return &CachedKernel{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		lookups: lookups,
	}
}

func (c *CachedKernel) DayKernel(day time.Time) [24]float64 {
	day = domain.DayOf(day)
	if k, ok := c.cache.get(day); ok {
		c.count("hit")
		return k
	}
	c.count("miss")
	k := c.inner.DayKernel(day)
	c.cache.put(day, k)
	return k
}

// Len reports the number of cached days.
func (c *CachedKernel) Len() int {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return len(c.cache.entries)
}

func (c *CachedKernel) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// lruCache is a simple thread-safe LRU cache of day kernels.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[time.Time]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   time.Time
	value [24]float64
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		entries:    make(map[time.Time]*entry),
	}
}

func (c *lruCache) get(key time.Time) ([24]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return [24]float64{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key time.Time, value [24]float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
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

func (c *lruCache) remove(e *entry) {
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

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
