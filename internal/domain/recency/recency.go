// Package recency remembers recently shown pairs so they are not repeated
// within a time window.
package recency

import (
	"sync"
	"time"

	"github.com/okian/ranked/internal/domain/model"
)

// Default cache parameters.
const (
	DefaultCapacity = 4096
	DefaultWindow   = 10 * time.Minute
)

type slot struct {
	key string
	at  time.Time
}

// Cache is a bounded, time-windowed set of unordered id pairs. Entries leave
// the set when they age past the window or when the ring wraps over them.
type Cache struct {
	mu     sync.Mutex
	window time.Duration
	ring   []slot
	next   int
	index  map[string]int // pair key -> ring slot
	now    func() time.Time
}

// New creates a cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		window: DefaultWindow,
		now:    time.Now,
	}
	capacity := DefaultCapacity
	for _, opt := range opts {
		opt(c, &capacity)
	}
	c.ring = make([]slot, capacity)
	c.index = make(map[string]int, capacity)
	return c
}

// Seen reports whether the pair was recorded within the window.
func (c *Cache) Seen(a, b string) bool {
	if c == nil || len(c.ring) == 0 {
		return false
	}
	key := model.PairKey(a, b)

	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[key]
	if !ok {
		return false
	}
	if c.now().Sub(c.ring[i].at) >= c.window {
		delete(c.index, key)
		c.ring[i] = slot{}
		return false
	}
	return true
}

// Record marks the pair as shown now.
func (c *Cache) Record(a, b string) {
	if c == nil || len(c.ring) == 0 {
		return
	}
	key := model.PairKey(a, b)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[key]; ok {
		c.ring[i].at = now
		return
	}
	if old := c.ring[c.next]; old.key != "" {
		delete(c.index, old.key)
	}
	c.ring[c.next] = slot{key: key, at: now}
	c.index[key] = c.next
	c.next = (c.next + 1) % len(c.ring)
}

// Len returns the number of tracked pairs, including ones not yet lazily expired.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
