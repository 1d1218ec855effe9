package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"clubadmin/internal/metrics"
)

// Options configures a Cache.
type Options struct {
	TTL time.Duration
	// Refresh re-runs the fetchers of invalidated keys in the background.
	Refresh        bool
	RefreshTimeout time.Duration
	// LoadTimeout bounds a shared load. The load is detached from the
	// caller that started it, so other callers can still use its result.
	LoadTimeout time.Duration
}

// minSweep is the fetcher count below which expired fetchers are left alone.
const minSweep = 256

// Cache is a read-through cache keyed by request, invalidated by resource
// kind. Concurrent misses on one key share a single fetch.
type Cache struct {
	backend Backend
	opts    Options
	group   singleflight.Group
	now     func() time.Time

	// gens counts invalidations per kind. A load only stores its value if
	// no kind it depends on was invalidated while it ran.
	genMu sync.RWMutex
	gens  map[Kind]uint64

	mu       sync.Mutex
	fetchers map[string]refresher
	sweepAt  int
	wg       sync.WaitGroup
}

type refresher struct {
	deps    []Kind
	run     func(ctx context.Context) ([]byte, error)
	expires time.Time
}

func New(backend Backend, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 30 * time.Second
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Cache{
		backend:  backend,
		opts:     opts,
		now:      time.Now,
		gens:     make(map[Kind]uint64),
		fetchers: make(map[string]refresher),
		sweepAt:  minSweep,
	}
}

// Fetch returns the cached value for key or loads it with fetch, stores it
// and records that it depends on deps. A caller whose ctx ends stops
// waiting; the shared load keeps running for the others.
func Fetch[T any](ctx context.Context, c *Cache, key string, deps []Kind, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	label := metricKind(deps)
	gen := c.generation(deps)

	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		log.Printf("cache get %s failed, loading: %v", key, err)
	}
	if ok {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			metrics.CacheHits.WithLabelValues(label).Inc()
			return out, nil
		}
		log.Printf("cache entry %s undecodable, reloading", key)
	}
	metrics.CacheMisses.WithLabelValues(label).Inc()
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	load := func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	// Callers arriving after an invalidation start a new load instead of
	// joining one that began before it.
	flight := key + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
		defer cancel()
		raw, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.storeIfCurrent(ctx, key, raw, deps, gen) {
			c.remember(key, deps, load)
		}
		return raw, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	var out T
	if err := json.Unmarshal(res.Val.([]byte), &out); err != nil {
		return zero, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

func (c *Cache) generation(deps []Kind) uint64 {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.generationLocked(deps)
}

func (c *Cache) generationLocked(deps []Kind) uint64 {
	var sum uint64
	for _, k := range deps {
		sum += c.gens[k]
	}
	return sum
}

// storeIfCurrent stores raw unless deps were invalidated since gen was read.
// Invalidate bumps generations under the write lock before it drops keys,
// so a store either lands before the drop or is skipped.
func (c *Cache) storeIfCurrent(ctx context.Context, key string, raw []byte, deps []Kind, gen uint64) bool {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	if c.generationLocked(deps) != gen {
		log.Printf("cache %s invalidated during load, not stored", key)
		return false
	}
	c.store(ctx, key, raw, deps)
	return true
}

func (c *Cache) store(ctx context.Context, key string, raw []byte, deps []Kind) {
	if err := c.backend.Set(ctx, key, raw, c.opts.TTL, deps); err != nil {
		log.Printf("cache set %s failed: %v", key, err)
	}
}

// remember keeps the fetcher of key for background refresh until the value
// it loaded would have expired.
func (c *Cache) remember(key string, deps []Kind, run func(ctx context.Context) ([]byte, error)) {
	if !c.opts.Refresh {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchers[key] = refresher{deps: deps, run: run, expires: now.Add(c.opts.TTL)}
	if len(c.fetchers) < c.sweepAt {
		return
	}
	for k, r := range c.fetchers {
		if !now.Before(r.expires) {
			delete(c.fetchers, k)
		}
	}
	c.sweepAt = max(2*len(c.fetchers), minSweep)
}

// Invalidate drops every key depending on kinds. With Refresh enabled, the
// keys this process loaded within the last TTL are re-fetched in the
// background; readers may see a miss until the refresh lands.
func (c *Cache) Invalidate(ctx context.Context, kinds ...Kind) ([]string, error) {
	c.genMu.Lock()
	for _, k := range kinds {
		c.gens[k]++
	}
	c.genMu.Unlock()

	keys, err := c.backend.Invalidate(ctx, kinds...)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		metrics.Invalidations.WithLabelValues(string(k)).Inc()
	}
	if !c.opts.Refresh {
		return keys, nil
	}

	now := c.now()
	c.mu.Lock()
	jobs := make(map[string]refresher, len(keys))
	for _, key := range keys {
		r, ok := c.fetchers[key]
		if !ok {
			continue
		}
		if !now.Before(r.expires) {
			delete(c.fetchers, key)
			continue
		}
		jobs[key] = r
	}
	c.mu.Unlock()

	for key, r := range jobs {
		c.wg.Add(1)
		go func(key string, r refresher) {
			defer c.wg.Done()
			gen := c.generation(r.deps)
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
			defer cancel()
			raw, err := r.run(ctx)
			if err != nil {
				metrics.Refreshes.WithLabelValues("error").Inc()
				log.Printf("cache refresh %s failed: %v", key, err)
				c.mu.Lock()
				delete(c.fetchers, key)
				c.mu.Unlock()
				return
			}
			if c.storeIfCurrent(ctx, key, raw, r.deps, gen) {
				metrics.Refreshes.WithLabelValues("ok").Inc()
			}
		}(key, r)
	}
	return keys, nil
}

// Wait blocks until background refreshes started so far have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

func metricKind(deps []Kind) string {
	if len(deps) == 0 {
		return "none"
	}
	return string(deps[0])
}
