package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis. Keys are scoped
// with Scope (typically the device id) so two devices never collide.
type Idem struct {
	R     *redis.Client
	TTL   time.Duration
	Scope func(*http.Request) string
}

func hashKey(scope, key string) string {
	sum := sha256.Sum256([]byte(scope + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware rejects a replayed Idempotency-Key with 409. Requests without the
// header, or servers without Redis, pass straight through. A key whose request
// ended in an error status is released so the client can retry with it.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		scope := ""
		if i.Scope != nil {
			scope = i.Scope(r)
		}
		key := hashKey(scope, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() >= http.StatusBadRequest {
			_ = i.R.Del(context.WithoutCancel(r.Context()), key).Err()
		}
	})
}
