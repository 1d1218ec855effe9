package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffectsTable(t *testing.T) {
	assert.ElementsMatch(t, []Kind{KindCategory, KindDashboard}, Affects(CategoryCreate))
	assert.ElementsMatch(t, []Kind{KindCategory, KindDashboard}, Affects(CategoryDelete))
	assert.ElementsMatch(t, []Kind{KindCategory, KindClub}, Affects(CategoryUpdate))
	assert.ElementsMatch(t, []Kind{KindEnrollment, KindStudent, KindClub, KindDashboard}, Affects(EnrollmentProcess))
	assert.ElementsMatch(t, []Kind{KindStudent, KindDashboard, KindFaculty, KindGroup}, Affects(HemisSync))
	assert.Empty(t, Affects(Mutation("unknown")))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("dashboard:month", KindDashboard, KindStudent, KindClub)
	r.Register("categories", KindCategory)
	r.Register("clubs:page1", KindClub)

	assert.Equal(t, []string{"clubs:page1", "dashboard:month"}, r.Affected(KindClub))
	assert.Equal(t, []string{"categories", "dashboard:month"}, r.Affected(KindCategory, KindDashboard))
	assert.Empty(t, r.Affected(KindGroup))

	r.Register("dashboard:month", KindDashboard)
	assert.Equal(t, []string{"clubs:page1"}, r.Affected(KindClub))
	assert.Equal(t, []Kind{KindDashboard}, r.Deps("dashboard:month"))

	r.Remove("clubs:page1")
	assert.Empty(t, r.Affected(KindClub))
}

func TestFetchCachesAndInvalidates(t *testing.T) {
	c := New(NewMemory(), Options{TTL: time.Minute})
	ctx := context.Background()
	var calls int
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"Sport", "Art"}, nil
	}

	got, err := Fetch(ctx, c, "categories", []Kind{KindCategory}, load)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sport", "Art"}, got)

	_, err = Fetch(ctx, c, "categories", []Kind{KindCategory}, load)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	keys, err := c.Invalidate(ctx, Affects(CategoryUpdate)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories"}, keys)

	_, err = Fetch(ctx, c, "categories", []Kind{KindCategory}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// Hemis sync does not touch categories.
	keys, err = c.Invalidate(ctx, Affects(HemisSync)...)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	c := New(NewMemory(), Options{})
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Fetch(ctx, c, "k", nil, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	got, err := Fetch(ctx, c, "k", nil, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestFetchSharesConcurrentMisses(t *testing.T) {
	c := New(NewMemory(), Options{})
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(ctx, c, "slow", []Kind{KindDashboard}, load)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	// Let every goroutine reach the in-flight call before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("1"), time.Minute, []Kind{KindClub}))
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Empty(t, m.reg.Affected(KindClub))
}

func TestInvalidateRefreshesInBackground(t *testing.T) {
	c := New(NewMemory(), Options{Refresh: true, RefreshTimeout: time.Second})
	ctx := context.Background()
	var version atomic.Int32
	load := func(context.Context) (int32, error) { return version.Add(1), nil }

	got, err := Fetch(ctx, c, "overview", []Kind{KindDashboard}, load)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)

	_, err = c.Invalidate(ctx, KindDashboard)
	require.NoError(t, err)
	c.Wait()

	got, err = Fetch(ctx, c, "overview", []Kind{KindDashboard}, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), got, "refresh should have stored a new value")
	assert.Equal(t, int32(2), version.Load())
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewRedisBackend(client, "test:")
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "dashboard:month", []byte(`{"a":1}`), time.Minute, []Kind{KindDashboard, KindClub}))
	require.NoError(t, b.Set(ctx, "categories", []byte(`[]`), time.Minute, []Kind{KindCategory}))

	val, ok, err := b.Get(ctx, "dashboard:month")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(val))
	assert.True(t, mr.Exists("test:kind:club"))
	assert.Equal(t, time.Minute, mr.TTL("test:kind:club"))

	keys, err := b.Invalidate(ctx, KindClub)
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:month"}, keys)

	_, ok, err = b.Get(ctx, "dashboard:month")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "categories")
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, _ = b.Get(ctx, "categories")
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:kind:category"), "idle kind sets expire")

	keys, err = b.Invalidate(ctx, KindGroup)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCacheOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := New(NewRedisBackend(client, ""), Options{TTL: time.Minute})
	ctx := context.Background()
	calls := 0
	load := func(context.Context) (map[string]int, error) {
		calls++
		return map[string]int{"busy": 3}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, "students:summary", []Kind{KindStudent}, load)
		require.NoError(t, err)
		assert.Equal(t, 3, got["busy"])
	}
	assert.Equal(t, 1, calls)

	_, err := c.Invalidate(ctx, Affects(EnrollmentProcess)...)
	require.NoError(t, err)
	_, err = Fetch(ctx, c, "students:summary", []Kind{KindStudent}, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInvalidateDuringLoadDropsStaleValue(t *testing.T) {
	c := New(NewMemory(), Options{TTL: time.Minute})
	ctx := context.Background()
	fetchValue := func(v string) func(context.Context) (string, error) {
		return func(context.Context) (string, error) { return v, nil }
	}
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string, 1)

	go func() {
		v, err := Fetch(ctx, c, "categories", []Kind{KindCategory}, func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		assert.NoError(t, err)
		done <- v
	}()
	<-started
	_, err := c.Invalidate(ctx, KindCategory)
	require.NoError(t, err)

	got, err := Fetch(ctx, c, "categories", []Kind{KindCategory}, fetchValue("new"))
	require.NoError(t, err)
	assert.Equal(t, "new", got, "later callers do not join the earlier load")

	close(release)
	assert.Equal(t, "old", <-done)

	got, err = Fetch(ctx, c, "categories", []Kind{KindCategory}, fetchValue("newer"))
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestInvalidateDuringLoadOverRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := New(NewRedisBackend(client, ""), Options{TTL: time.Minute})
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := Fetch(ctx, c, "clubs", []Kind{KindClub}, func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-started
	_, err := c.Invalidate(ctx, KindClub)
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists("clubadmin:cache:v:clubs"))
}

func TestCanceledCallerDoesNotFailSharedLoad(t *testing.T) {
	c := New(NewMemory(), Options{LoadTimeout: time.Second})
	var once sync.Once
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return 42, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := Fetch(ctxA, c, "overview", []Kind{KindDashboard}, load)
		errA <- err
	}()
	<-started

	resB := make(chan int, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "overview", []Kind{KindDashboard}, load)
		assert.NoError(t, err)
		resB <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(release)
	assert.Equal(t, 42, <-resB)
}

func trackedFetchers(c *Cache) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fetchers)
}

func TestExpiredFetchersAreDropped(t *testing.T) {
	c := New(NewMemory(), Options{TTL: time.Minute, Refresh: true})
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	c.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}
	ctx := context.Background()
	var loads atomic.Int32
	load := func(context.Context) (int32, error) { return loads.Add(1), nil }

	for i := 0; i < minSweep-1; i++ {
		_, err := Fetch(ctx, c, fmt.Sprintf("students|u1|search-%d", i), []Kind{KindStudent}, load)
		require.NoError(t, err)
	}
	assert.Equal(t, minSweep-1, trackedFetchers(c))

	advance(2 * time.Minute)
	_, err := Fetch(ctx, c, "students|u2|", []Kind{KindStudent}, load)
	require.NoError(t, err)
	assert.Equal(t, 1, trackedFetchers(c), "expired fetchers are swept")

	advance(2 * time.Minute)
	before := loads.Load()
	keys, err := c.Invalidate(ctx, KindStudent)
	require.NoError(t, err)
	assert.NotEmpty(t, keys)
	c.Wait()
	assert.Equal(t, before, loads.Load(), "expired fetchers are not refreshed")
	assert.Zero(t, trackedFetchers(c))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("club")
	require.NoError(t, err)
	assert.Equal(t, KindClub, k)

	_, err = ParseKind("clubs")
	assert.Error(t, err)
}
