package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chimerakang/learnhub-go/metrics"
)

// DefaultMaxEntries bounds the number of cached values.
const DefaultMaxEntries = 1024

type fetchFunc func(context.Context) (any, error)

// flight tracks one shared load. A load whose key is invalidated while it
// runs must not store its result.
type flight struct {
	key     Key
	expired bool
}

type entry struct {
	key       Key
	value     any
	fetchedAt time.Time
	fetch     fetchFunc // nil for values set with SetData
}

// Cache holds fetched server resources keyed by Key.
type Cache struct {
	policy     Policy
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Metrics

	entries *expirable.LRU[string, *entry]
	sf      singleflight.Group

	mu         sync.Mutex
	refreshing map[string]bool
	inflight   map[string]*flight
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Cache.
type Option func(*Cache)

// WithPolicy replaces the default policy. Unset CacheTime, MaxAttempts,
// RetryDelay and ShouldRetry fall back to their defaults.
func WithPolicy(p Policy) Option {
	return func(c *Cache) { c.policy = p }
}

// WithMaxEntries bounds the number of cached values.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithClock sets the clock used for freshness decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		policy:     DefaultPolicy(),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     zap.NewNop(),
		refreshing: make(map[string]bool),
		inflight:   make(map[string]*flight),
	}
	for _, o := range opts {
		o(c)
	}
	c.policy = c.policy.normalize()
	c.entries = expirable.NewLRU[string, *entry](c.maxEntries, nil, c.policy.CacheTime)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Policy returns the effective policy.
func (c *Cache) Policy() Policy { return c.policy }

// Len returns the number of live entries.
func (c *Cache) Len() int { return c.entries.Len() }

// FetchOption tunes one Fetch call.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	staleTime time.Duration
	swr       bool
}

// StaleTime overrides the freshness window for one call.
func StaleTime(d time.Duration) FetchOption {
	return func(f *fetchConfig) { f.staleTime = d }
}

// StaleWhileRevalidate overrides whether a stale value is served immediately.
func StaleWhileRevalidate(enabled bool) FetchOption {
	return func(f *fetchConfig) { f.swr = enabled }
}

// Fetch returns the value cached under key, calling fn when it is missing
// or stale. A fresh value is returned as is. A stale value is returned
// immediately while one background refresh runs, unless
// stale-while-revalidate is off for the call, in which case Fetch waits for
// the refetch. Concurrent fetches of the same key share one request.
func Fetch[T any](ctx context.Context, c *Cache, key Key, fn func(context.Context) (T, error), opts ...FetchOption) (T, error) {
	cfg := fetchConfig{staleTime: c.policy.StaleTime, swr: c.policy.StaleWhileRevalidate}
	for _, o := range opts {
		o(&cfg)
	}
	load := func(ctx context.Context) (any, error) { return fn(ctx) }

	if e, ok := c.lookup(key); ok {
		if v, ok := e.value.(T); ok {
			stale := c.now().Sub(e.fetchedAt) >= cfg.staleTime
			switch {
			case !stale:
				c.metrics.RecordCacheHit(false)
				return v, nil
			case cfg.swr:
				c.metrics.RecordCacheHit(true)
				c.revalidate(key, load)
				return v, nil
			}
		}
	} else {
		c.metrics.RecordCacheMiss()
	}

	var zero T
	v, err := c.load(ctx, key, load)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("learnhub/query: %s holds %T", key, v)
	}
	return t, nil
}

// GetData returns the value cached under key without fetching.
func GetData[T any](c *Cache, key Key) (T, bool) {
	var zero T
	e, ok := c.lookup(key)
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// SetData stores v under key as freshly fetched.
func (c *Cache) SetData(key Key, v any) {
	c.store(key, v, nil)
}

// Invalidate removes every entry under prefix. The next Fetch refetches.
// Loads of those keys already running keep their result out of the cache.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.inflight {
		if f.key.HasPrefix(prefix) {
			f.expired = true
		}
	}
	n := 0
	for _, k := range c.entries.Keys() {
		if e, ok := c.entries.Peek(k); ok && e.key.HasPrefix(prefix) {
			c.entries.Remove(k)
			n++
		}
	}
	c.metrics.SetCacheSize(c.entries.Len())
	return n
}

// Clear removes every entry and keeps running loads from storing theirs.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range c.inflight {
		f.expired = true
	}
	c.entries.Purge()
	c.metrics.SetCacheSize(0)
}

// Focus signals that the application regained the foreground. Stale entries
// are refreshed in the background when the policy enables RefetchOnFocus.
// It returns the number of refreshes started.
func (c *Cache) Focus() int {
	if !c.policy.RefetchOnFocus {
		return 0
	}
	n := 0
	now := c.now()
	for _, e := range c.entries.Values() {
		if e.fetch != nil && now.Sub(e.fetchedAt) >= c.policy.StaleTime {
			if c.revalidate(e.key, e.fetch) {
				n++
			}
		}
	}
	return n
}

// Close cancels running loads, stops background refreshes and waits for
// running ones to return.
func (c *Cache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
	return nil
}

// lookup returns the entry for key and restarts its retention window.
func (c *Cache) lookup(key Key) (*entry, bool) {
	k := key.String()
	e, ok := c.entries.Get(k)
	if !ok {
		return nil, false
	}
	c.entries.Add(k, e)
	return e, true
}

func (c *Cache) store(key Key, v any, fetch fetchFunc) {
	c.entries.Add(key.String(), &entry{key: key, value: v, fetchedAt: c.now(), fetch: fetch})
	c.metrics.SetCacheSize(c.entries.Len())
}

// load fetches key with retries, sharing one load between concurrent
// callers. The shared load does not stop when one caller gives up; it is
// cancelled only by Close. Each caller returns when its own ctx is done.
func (c *Cache) load(ctx context.Context, key Key, fn fetchFunc) (any, error) {
	k := key.String()
	ch := c.sf.DoChan(k, func() (any, error) {
		lctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(c.ctx, cancel)
		defer stop()

		f := c.startFlight(k, key)
		v, err := c.policy.retry(lctx, fn, func(err error) {
			c.metrics.RecordReadAttempt(key.Resource(), err)
			if err != nil {
				c.logger.Debug("read attempt failed", zap.Stringer("key", key), zap.Error(err))
			}
		})
		c.finishFlight(k, f, v, err, fn)
		return v, err
	})

	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) startFlight(k string, key Key) *flight {
	f := &flight{key: key}
	c.mu.Lock()
	c.inflight[k] = f
	c.mu.Unlock()
	return f
}

// finishFlight stores a successful result unless the key was invalidated
// while the load ran.
func (c *Cache) finishFlight(k string, f *flight, v any, err error, fn fetchFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[k] == f {
		delete(c.inflight, k)
	}
	if err != nil {
		return
	}
	if f.expired {
		c.logger.Debug("dropping result invalidated during load", zap.Stringer("key", f.key))
		return
	}
	c.store(f.key, v, fn)
}

// revalidate starts one background refresh of key unless one is running
// or the cache is closed.
func (c *Cache) revalidate(key Key, fn fetchFunc) bool {
	k := key.String()
	c.mu.Lock()
	if c.closed || c.refreshing[k] {
		c.mu.Unlock()
		return false
	}
	c.refreshing[k] = true
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, k)
			c.mu.Unlock()
		}()
		if _, err := c.load(c.ctx, key, fn); err != nil {
			c.logger.Debug("background refresh failed", zap.Stringer("key", key), zap.Error(err))
		}
	}()
	return true
}
