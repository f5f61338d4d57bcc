package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is a process-local key/value store where every entry expires
// on its own TTL. An entry is visible while now < insertedAt+ttl.
type Memory[V any] struct {
	mu      sync.RWMutex
	items   map[string]entry[V]
	now     func() time.Time
	sweep   time.Duration
	stop    chan struct{}
	stopped sync.Once
}

type Option func(*options)

type options struct {
	now   func() time.Time
	sweep time.Duration
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSweepInterval sets how often expired entries are purged in the
// background. Zero disables the sweeper; expiry is then lazy only.
func WithSweepInterval(d time.Duration) Option {
	return func(o *options) { o.sweep = d }
}

func New[V any](opts ...Option) *Memory[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Memory[V]{
		items: make(map[string]entry[V]),
		now:   o.now,
		sweep: o.sweep,
		stop:  make(chan struct{}),
	}
	if c.sweep > 0 {
		go c.janitor()
	}
	return c
}

func (c *Memory[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
}

func (c *Memory[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.now().Before(e.expiresAt) {
		return e.value, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// re-check under the write lock, a concurrent Set may have refreshed it
	e, ok = c.items[key]
	if !ok {
		return zero, false
	}
	if c.now().Before(e.expiresAt) {
		return e.value, true
	}
	delete(c.items, key)
	return zero, false
}

func (c *Memory[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len counts live entries only.
func (c *Memory[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// DeleteExpired drops every entry whose TTL has elapsed and reports how
// many were removed.
func (c *Memory[V]) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *Memory[V]) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

func (c *Memory[V]) janitor() {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.DeleteExpired()
		case <-c.stop:
			return
		}
	}
}
