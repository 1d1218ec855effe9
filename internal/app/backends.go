package app

import (
	"fmt"
	"log"

	"clubadmin/internal/cache"
	"clubadmin/internal/config"
	"clubadmin/internal/queue"
	"clubadmin/internal/session"
	"clubadmin/internal/store"
)

// Backends are the shared stores both binaries run on.
type Backends struct {
	Redis    *store.Redis // nil when REDIS_ADDR is unset
	Cache    *cache.Cache
	Sessions session.Store
	Queue    queue.Queue
}

// OpenBackends picks memory or Redis for the cache, sessions and queue as
// configured.
func OpenBackends(cfg config.App) (*Backends, error) {
	rdb, err := store.NewRedis(cfg.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	b := &Backends{Redis: rdb}

	var cb cache.Backend = cache.NewMemory()
	if cfg.CacheBackend == "redis" {
		cb = cache.NewRedisBackend(rdb.Client, "")
	}
	b.Cache = cache.New(cb, cache.Options{TTL: cfg.CacheTTL, Refresh: cfg.CacheRefresh})

	b.Sessions = session.NewMemoryStore()
	if cfg.SessionBackend == "redis" {
		b.Sessions = session.NewRedisStore(rdb.Client, "")
	}

	b.Queue = queue.NewInMemory(64)
	if cfg.QueueBackend == "redis" {
		b.Queue = queue.NewRedisQueue(rdb.Client, "")
	}
	log.Printf("backends: cache=%s sessions=%s queue=%s", cfg.CacheBackend, cfg.SessionBackend, cfg.QueueBackend)
	return b, nil
}

// Close waits for background cache refreshes and closes Redis.
func (b *Backends) Close() error {
	b.Cache.Wait()
	return b.Redis.Close()
}
