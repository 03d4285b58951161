package viewcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/dgraph-io/ristretto/v2/z"

	"civicportal/pkg/requestcontext"
)

// generationSlots is the number of striped generation counters. Keys that
// share a slot only cost each other a skipped write.
const generationSlots = 1024

// Cache holds rendered view bodies in process memory. Every entry costs 1,
// so maxEntries bounds the number of views kept.
//
// Writers read Generation before rendering and store with SetIfUnchanged, so
// a body rendered before an invalidation is never stored after it.
type Cache struct {
	c       *ristretto.Cache[string, []byte]
	ttl     time.Duration
	logger  *slog.Logger
	metrics *Metrics

	mu   sync.Mutex
	gens [generationSlots]uint64
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func New(maxEntries int64, ttl time.Duration, opts ...Option) (*Cache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("view cache size must be positive")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("view cache ttl must be positive")
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create view cache: %w", err)
	}
	c := &Cache{c: rc, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the cached body of t.
func (c *Cache) Get(t Target) ([]byte, bool) {
	body, ok := c.c.Get(t.Key())
	c.metrics.observeLookup(ok)
	return body, ok
}

// Generation returns the invalidation generation of t. Capture it before
// reading the data a view is rendered from.
func (c *Cache) Generation(t Target) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[slot(t.Key())]
}

// SetIfUnchanged stores body for t unless t was invalidated since gen was
// read. It reports whether the body was stored. Writes are buffered; Wait
// makes them visible before returning so the next request can hit.
func (c *Cache) SetIfUnchanged(t Target, gen uint64, body []byte) bool {
	key := t.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[slot(key)] != gen {
		c.metrics.observeStaleWrite()
		return false
	}
	c.c.SetWithTTL(key, body, 1, c.ttl)
	c.c.Wait()
	return true
}

// Invalidate drops every target and advances its generation. It implements
// Invalidator.
func (c *Cache) Invalidate(ctx context.Context, targets []Target) {
	c.mu.Lock()
	for _, t := range targets {
		key := t.Key()
		c.gens[slot(key)]++
		c.c.Del(key)
	}
	c.mu.Unlock()
	c.metrics.addInvalidations(len(targets))
	c.logger.DebugContext(ctx, "views invalidated",
		"count", len(targets),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func slot(key string) uint64 {
	h, _ := z.KeyToHash(key)
	return h % generationSlots
}

func (c *Cache) Close() {
	c.c.Close()
}

var _ Invalidator = (*Cache)(nil)
