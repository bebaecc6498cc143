package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

// Pinger is a dependency that can be probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe names a readiness dependency.
type Probe struct {
	Name    string
	Pinger  Pinger
	Timeout time.Duration
}

var draining atomic.Bool

// SetReady toggles readiness; the server flips it off while shutting down.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}
	status := make(map[string]string, len(h.Probes))
	code := http.StatusOK
	for _, p := range h.Probes {
		if err := ping(r.Context(), p); err != nil {
			status[p.Name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[p.Name] = "ok"
	}
	common.JSON(w, code, status)
}

func ping(ctx context.Context, p Probe) error {
	if p.Pinger == nil {
		return nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Pinger.Ping(ctx)
}
