package cacheinv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher loads a query result from the server, the source of truth.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	fetch   Fetcher
	value   any
	fetched bool
	stale   bool
	gen     uint64
	fetches int
}

// QueryCache holds query results keyed by QueryKey. Invalidated entries are
// marked stale and refetched in the background; concurrent refetches of one
// key are collapsed into a single call.
type QueryCache struct {
	mu      sync.Mutex
	entries map[QueryKey]*entry
	group   singleflight.Group
	logger  *slog.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueryCache constructs an empty cache. timeout bounds each background
// refetch; zero means 10 seconds.
func NewQueryCache(logger *slog.Logger, timeout time.Duration) *QueryCache {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &QueryCache{
		entries: make(map[QueryKey]*entry),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register declares how to load key. Registering again replaces the fetcher
// and marks the entry stale.
func (c *QueryCache) Register(key QueryKey, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.fetch = fetch
		e.stale = true
		e.gen++
		return
	}
	c.entries[key] = &entry{fetch: fetch}
}

// Get returns the cached value, fetching it first when it is missing or stale.
func (c *QueryCache) Get(ctx context.Context, key QueryKey) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("cacheinv: query %q not registered", key)
	}
	if e.fetched && !e.stale {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	ch := c.group.DoChan(string(key), func() (any, error) {
		return c.refetch(ctx, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// Invalidate marks key stale and starts a background refetch. Unregistered
// keys are ignored.
func (c *QueryCache) Invalidate(key QueryKey) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	e.stale = true
	e.gen++
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// A flight already in progress may have started before the write; keep
		// going until a fetch begins after the latest invalidation.
		for c.ctx.Err() == nil {
			ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
			_, err, _ := c.group.Do(string(key), func() (any, error) {
				return c.refetch(ctx, key)
			})
			cancel()
			if err != nil {
				if c.ctx.Err() == nil {
					c.logger.Warn("cache refetch failed", slog.String("key", string(key)), slog.Any("error", err))
				}
				return
			}
			if !c.Stale(key) {
				return
			}
		}
	}()
}

// InvalidateAll marks every registered key stale and refetches them. Clients
// call it after a reconnect since missed events are never replayed.
func (c *QueryCache) InvalidateAll() {
	c.mu.Lock()
	keys := make([]QueryKey, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.mu.Unlock()
	for _, key := range keys {
		c.Invalidate(key)
	}
}

// Stale reports whether key is waiting for a refetch.
func (c *QueryCache) Stale(key QueryKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && (e.stale || !e.fetched)
}

// Fetches returns how many times key was loaded from the server.
func (c *QueryCache) Fetches(key QueryKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.fetches
	}
	return 0
}

// Close cancels pending refetches and waits for them to return.
func (c *QueryCache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *QueryCache) refetch(ctx context.Context, key QueryKey) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("cacheinv: query %q not registered", key)
	}
	fetch := e.fetch
	gen := e.gen
	c.mu.Unlock()

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e.value = value
	e.fetched = true
	e.stale = e.gen != gen
	e.fetches++
	c.mu.Unlock()
	return value, nil
}
