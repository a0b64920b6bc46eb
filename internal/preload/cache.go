// Package preload is the page-lifetime frame cache: each distinct frame id is
// fetched and decoded at most once, and every consumer shares the outcome.
package preload

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoFetcher is recorded on every record of a cache built without a fetcher.
	ErrNoFetcher = errors.New("preload: no fetcher configured")

	// ErrClosed is recorded on records still queued when the cache closes.
	ErrClosed = errors.New("preload: cache closed")
)

// DefaultWorkers is the number of concurrent fetches per cache.
const DefaultWorkers = 4

// Fetcher loads and decodes one frame resource.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (image.Image, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id string) (image.Image, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, id string) (image.Image, error) {
	return f(ctx, id)
}

// Options are per-request hints for Ensure.
type Options struct {
	// HighPriority moves the fetch ahead of normal requests. It can upgrade
	// an existing request, never downgrade one.
	HighPriority bool
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Records  int
	Fetches  int64
	Failures int64
	Upgrades int64
	Queued   int
}

// Cache deduplicates frame fetches across all consumers. Records are never
// removed.
type Cache struct {
	fetcher Fetcher
	workers int
	log     *zap.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	records map[string]*Record
	high    []*Record
	low     []*Record
	started bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	fetches  atomic.Int64
	failures atomic.Int64
	upgrades atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithWorkers sets the number of fetch goroutines.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates an isolated cache. Workers start on first use.
func New(fetcher Fetcher, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetcher: fetcher,
		workers: DefaultWorkers,
		log:     zap.NewNop(),
		records: make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ensure returns the record for id, starting its fetch if this is the first
// request. The existence check and insert happen under one lock, so
// concurrent callers never cause a second fetch.
func (c *Cache) Ensure(id string, opts Options) *Record {
	c.mu.Lock()
	if rec, ok := c.records[id]; ok {
		if opts.HighPriority && !rec.high.Load() {
			rec.high.Store(true)
			c.upgrades.Add(1)
			if !rec.claimed.Load() && !c.closed {
				// The stale low-queue entry is skipped once claimed.
				c.high = append(c.high, rec)
				c.cond.Signal()
			}
		}
		c.mu.Unlock()
		return rec
	}

	rec := newRecord(id, opts.HighPriority)
	c.records[id] = rec

	switch {
	case c.fetcher == nil:
		c.mu.Unlock()
		rec.claimed.Store(true)
		c.failures.Add(1)
		rec.settle(nil, ErrNoFetcher)
		return rec
	case c.closed:
		c.mu.Unlock()
		rec.claimed.Store(true)
		rec.settle(nil, ErrClosed)
		return rec
	}

	if opts.HighPriority {
		c.high = append(c.high, rec)
	} else {
		c.low = append(c.low, rec)
	}
	c.startLocked()
	c.cond.Signal()
	c.mu.Unlock()
	return rec
}

// Lookup returns an existing record without creating one.
func (c *Cache) Lookup(id string) (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Wait blocks until every given record settles or ctx ends.
func Wait(ctx context.Context, recs ...*Record) error {
	for _, r := range recs {
		select {
		case <-r.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	queued := 0
	for _, r := range c.high {
		if !r.claimed.Load() {
			queued++
		}
	}
	for _, r := range c.low {
		if !r.claimed.Load() && !r.high.Load() {
			queued++
		}
	}
	return Stats{
		Records:  len(c.records),
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
		Upgrades: c.upgrades.Load(),
		Queued:   queued,
	}
}

func (c *Cache) startLocked() {
	if c.started {
		return
	}
	c.started = true
	c.wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go c.worker()
	}
}

func (c *Cache) next() (*Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		if c.closed {
			return nil, false
		}
		if len(c.high) > 0 {
			rec := c.high[0]
			c.high = c.high[1:]
			return rec, true
		}
		if len(c.low) > 0 {
			rec := c.low[0]
			c.low = c.low[1:]
			return rec, true
		}
		c.cond.Wait()
	}
}

func (c *Cache) worker() {
	defer c.wg.Done()
	for {
		rec, ok := c.next()
		if !ok {
			return
		}
		if !rec.claimed.CompareAndSwap(false, true) {
			continue
		}
		c.fetch(rec)
	}
}

func (c *Cache) fetch(rec *Record) {
	start := time.Now()
	c.fetches.Add(1)

	img, err := c.fetcher.Fetch(c.ctx, rec.id)
	if err == nil && img == nil {
		err = errors.New("preload: fetcher returned no image")
	}
	if err != nil {
		c.failures.Add(1)
		c.log.Warn("frame load failed", zap.String("id", rec.id), zap.Error(err))
	} else {
		c.log.Debug("frame loaded",
			zap.String("id", rec.id),
			zap.Bool("high", rec.high.Load()),
			zap.Duration("took", time.Since(start)))
	}
	rec.settle(img, err)
}

// Close stops the workers. In-flight fetches see a cancelled context; queued
// records settle with ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	queued := append(c.high, c.low...)
	c.high, c.low = nil, nil
	c.cancel()
	c.cond.Broadcast()
	c.mu.Unlock()

	c.wg.Wait()

	for _, rec := range queued {
		if rec.claimed.CompareAndSwap(false, true) {
			rec.settle(nil, ErrClosed)
		}
	}
}
