package app

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubadmin/internal/config"
	"clubadmin/internal/queue"
	"clubadmin/internal/session"
)

func TestOpenBackendsMemory(t *testing.T) {
	b, err := OpenBackends(config.Defaults())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Redis)
	assert.IsType(t, &session.MemoryStore{}, b.Sessions)
	assert.IsType(t, &queue.InMemory{}, b.Queue)
}

func TestOpenBackendsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Defaults()
	cfg.RedisAddr = mr.Addr()
	cfg.CacheBackend, cfg.SessionBackend, cfg.QueueBackend = "redis", "redis", "redis"

	b, err := OpenBackends(cfg)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Redis)
	assert.IsType(t, &session.RedisStore{}, b.Sessions)
	assert.IsType(t, &queue.RedisQueue{}, b.Queue)
}
