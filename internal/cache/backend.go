package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend stores cached values together with their dependency index.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, deps []Kind) error
	// Invalidate drops every key depending on kinds and returns them.
	Invalidate(ctx context.Context, kinds ...Kind) ([]string, error)
}

// Memory is an in-process backend for single instance deployments and tests.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	reg   *Registry
	now   func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]memoryItem),
		reg:   NewRegistry(),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	if !it.expires.IsZero() && !m.now().Before(it.expires) {
		delete(m.items, key)
		m.reg.Remove(key)
		return nil, false, nil
	}
	return it.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration, deps []Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := memoryItem{value: value}
	if ttl > 0 {
		it.expires = m.now().Add(ttl)
	}
	m.items[key] = it
	m.reg.Register(key, deps...)
	return nil
}

func (m *Memory) Invalidate(_ context.Context, kinds ...Kind) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.reg.Affected(kinds...)
	for _, key := range keys {
		delete(m.items, key)
	}
	m.reg.Remove(keys...)
	return keys, nil
}

// RedisBackend shares the cache between the API and the worker. Values are
// plain keys with a TTL; each kind keeps a set of the keys depending on it.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "clubadmin:cache:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) valueKey(key string) string { return r.prefix + "v:" + key }
func (r *RedisBackend) kindKey(k Kind) string      { return r.prefix + "kind:" + string(k) }

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.valueKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores the value and indexes it under each kind. Kind sets expire
// with the newest value added to them, so an idle kind drops its index.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration, deps []Kind) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.valueKey(key), value, ttl)
		for _, k := range deps {
			p.SAdd(ctx, r.kindKey(k), key)
			if ttl > 0 {
				p.Expire(ctx, r.kindKey(k), ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// invalidateScript collects the members of the kind sets in KEYS, deletes
// their values (prefixed with ARGV[1]) and the sets, and returns the
// members. Running it as one script keeps a concurrent Set from being
// dropped from the index while its value survives.
var invalidateScript = redis.NewScript(`
local seen = {}
local out = {}
for _, set in ipairs(KEYS) do
	for _, member in ipairs(redis.call("SMEMBERS", set)) do
		if not seen[member] then
			seen[member] = true
			out[#out + 1] = member
			redis.call("DEL", ARGV[1] .. member)
		end
	end
end
redis.call("DEL", unpack(KEYS))
return out
`)

func (r *RedisBackend) Invalidate(ctx context.Context, kinds ...Kind) ([]string, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	setKeys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		setKeys = append(setKeys, r.kindKey(k))
	}
	keys, err := invalidateScript.Run(ctx, r.client, setKeys, r.valueKey("")).StringSlice()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis invalidate: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
