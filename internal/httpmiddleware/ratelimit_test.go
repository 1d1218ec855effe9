package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllowRefills(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60, nil)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(time.Hour)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"), "refill is capped at capacity")
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	l := NewTokenBucket(5, 60, nil)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(20 * time.Minute)
	l.Allow("new")

	assert.Equal(t, 1, l.Prune(10*time.Minute))
	assert.Len(t, l.state, 1)
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(1, 1, func(c *gin.Context) string { return c.GetHeader("X-User") })
	r := gin.New()
	r.Use(l.GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, do("u1"))
	assert.Equal(t, http.StatusTooManyRequests, do("u1"))
	assert.Equal(t, http.StatusNoContent, do("u2"))

	off := NewTokenBucket(0, 0, nil)
	r = gin.New()
	r.Use(off.GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, do("u1"))
	}
}
