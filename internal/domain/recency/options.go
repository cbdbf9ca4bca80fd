package recency

import "time"

// Option configures a Cache. Capacity is applied when the ring is allocated.
type Option func(c *Cache, capacity *int)

// WithCapacity bounds the number of remembered pairs. Zero disables the cache.
func WithCapacity(n int) Option {
	return func(_ *Cache, capacity *int) {
		if n >= 0 {
			*capacity = n
		}
	}
}

// WithWindow sets how long a pair is remembered.
func WithWindow(d time.Duration) Option {
	return func(c *Cache, _ *int) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache, _ *int) {
		if now != nil {
			c.now = now
		}
	}
}
