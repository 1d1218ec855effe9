package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ClientIP charges requests per client address.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// TokenBucket is an in-memory per-key rate limiter. Each key may burst up
// to capacity requests and regains perMinute tokens per minute.
type TokenBucket struct {
	capacity int
	rate     float64
	key      KeyFunc
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter. A non-positive perMinute disables it.
func NewTokenBucket(capacity, perMinute int, key KeyFunc) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	if key == nil {
		key = ClientIP
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     float64(perMinute),
		key:      key,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware returns gin handler enforcing the limit.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.rate <= 0 {
			c.Next()
			return
		}
		if !l.Allow(l.key(c)) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Allow takes one token from key's bucket.
func (l *TokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: float64(l.capacity) - 1, last: now}
		return true
	}
	if elapsed := now.Sub(b.last).Minutes(); elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > float64(l.capacity) {
			b.tokens = float64(l.capacity)
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle for longer than idle; they would be full anyway.
func (l *TokenBucket) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for k, b := range l.state {
		if b.last.Before(cutoff) {
			delete(l.state, k)
			n++
		}
	}
	return n
}
