package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(t *testing.T, rpm, burst int) (*RateLimiter, *fakeClock) {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour,
	})
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func takeN(t *testing.T, l Limiter, key string, n int) int {
	t.Helper()
	allowed := 0
	for range n {
		d, err := l.Take(context.Background(), key)
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	return allowed
}

func TestRateLimitConfigs(t *testing.T) {
	def := DefaultRateLimitConfig()
	assert.Equal(t, 120, def.RequestsPerMinute)
	assert.Equal(t, 30, def.BurstSize)

	login := LoginRateLimitConfig()
	assert.Less(t, login.RequestsPerMinute, def.RequestsPerMinute)
	assert.Equal(t, 5, login.BurstSize)
}

func TestRateLimiter_AllowsUpToBurstSize(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 3)
	assert.Equal(t, 3, takeN(t, rl, "burst", 5))
}

func TestRateLimiter_TokensRefillOverTime(t *testing.T) {
	rl, clock := newTestLimiter(t, 60, 2)
	assert.Equal(t, 2, takeN(t, rl, "refill", 3))

	d, err := rl.Take(context.Background(), "refill")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, time.Second, d.RetryAfter, float64(time.Millisecond))

	clock.advance(time.Second)
	assert.Equal(t, 1, takeN(t, rl, "refill", 2))
}

func TestRateLimiter_DifferentKeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 2)
	takeN(t, rl, "key-a", 5)
	assert.Equal(t, 1, takeN(t, rl, "key-b", 1))
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl, clock := newTestLimiter(t, 60, 2)
	takeN(t, rl, "stale", 1)
	clock.advance(11 * time.Minute)
	takeN(t, rl, "fresh", 1)

	rl.evictIdle(10 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.entries, "stale")
	assert.Contains(t, rl.entries, "fresh")
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rl := NewRedisRateLimiter(client, RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2}, "ratelimit:")
	assert.Equal(t, 60, rl.Limit())
	assert.Equal(t, 2, takeN(t, rl, "user:1", 4))

	d, err := rl.Take(context.Background(), "user:1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Positive(t, d.RetryAfter)

	assert.Equal(t, 1, takeN(t, rl, "user:2", 1))
	// redis_rate prefixes every key with "rate:"
	assert.True(t, mr.Exists("rate:ratelimit:user:1"))
}

func TestGetRateLimitKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{name: "principal", userID: "user-123", want: "user:user-123"},
		{name: "ip fallback", userID: "", want: "ip:10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:9999"
			c.Request = req
			if tt.userID != "" {
				c.Set(UserIDKey, tt.userID)
			}
			assert.Equal(t, tt.want, getRateLimitKey(c))
		})
	}
}

type failingLimiter struct{}

func (failingLimiter) Take(context.Context, string) (RateDecision, error) {
	return RateDecision{}, errors.New("redis down")
}
func (failingLimiter) Limit() int { return 1 }

func newRateLimitRouter(limiter Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func sendFrom(r http.Handler, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_AllowedThenBlocked(t *testing.T) {
	rl, _ := newTestLimiter(t, 120, 1)
	r := newRateLimitRouter(rl)

	first := sendFrom(r, "10.0.0.2:1234")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, strconv.Itoa(120), first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := sendFrom(r, "10.0.0.2:1234")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, sendFrom(r, "10.0.0.3:1234").Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	r := newRateLimitRouter(failingLimiter{})
	assert.Equal(t, http.StatusOK, sendFrom(r, "10.0.0.9:1").Code)
}
