package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/device"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Scope:  "auth",
			Key:    func(*http.Request) string { return "static" },
			Window: time.Second,
			Max:    1,
		},
	}
	counted := handler.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")
	require.True(t, mr.Exists("ratelimit:auth:static"))
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	called := false
	handler := Handler{
		Limiter: Limiter{Client: client, Prefix: "ratelimit:"},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(error) { called = true },
	}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestHandlerMiddlewareKeysByDevice(t *testing.T) {
	handler := Handler{
		Limiter: NewMemoryLimiter("test"),
		Config:  Config{Key: ByDevice, Window: time.Minute, Max: 1},
	}
	limited := device.NewResolver("", "").Middleware(handler.Middleware(okHandler()))

	send := func(id string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set(device.DefaultHeader, id)
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusOK, send("dev-a"))
	require.Equal(t, http.StatusTooManyRequests, send("dev-a"))
	require.Equal(t, http.StatusOK, send("dev-b"))
}

func TestByClientIPWithoutDevice(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, ByClientIP(req), ByDevice(req))
}
