package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func memoryLimiter(t *testing.T, rate string) *limiter.Limiter {
	t.Helper()
	parsed, err := limiter.NewRateFromFormatted(rate)
	require.NoError(t, err)
	return limiter.New(memory.NewStore(), parsed)
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	handler := Handler{
		Limiter: memoryLimiter(t, "1-M"),
		Key:     func(*http.Request) string { return "static" },
	}
	counted := handler.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr2.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")
}

func TestHandlerMiddlewareSeparatesKeys(t *testing.T) {
	handler := Handler{
		Limiter: memoryLimiter(t, "1-M"),
		Key:     ByHeaderOrIP("X-Cart-Session"),
	}
	h := handler.Middleware(okHandler())

	for _, session := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Cart-Session", session)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, session)
	}
}

func TestHandlerMiddlewareSkipsEmptyKey(t *testing.T) {
	handler := Handler{
		Limiter: memoryLimiter(t, "1-M"),
		Key:     func(*http.Request) string { return "" },
	}
	h := handler.Middleware(okHandler())
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim, err := NewRedisLimiter(client, "5-S", "")
	require.NoError(t, err)
	mr.Close()

	var got error
	handler := Handler{
		Limiter: lim,
		Key:     ByIP,
		OnError: func(err error) { got = err },
	}
	rec := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Error(t, got)
}

func TestNewRedisLimiterRejectsBadRate(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	_, err := NewRedisLimiter(client, "lots", "")
	require.Error(t, err)
}

func TestRedisLimiterCountsAcrossCalls(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim, err := NewRedisLimiter(client, "2-M", "test")
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		lctx, err := lim.Get(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		require.False(t, lctx.Reached)
	}
	lctx, err := lim.Get(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	require.True(t, lctx.Reached)
}
