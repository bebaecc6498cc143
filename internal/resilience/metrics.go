package resilience

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	StoreBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_breaker_state",
			Help: "Store breaker position: 0=closed, 1=open, 2=half-open",
		},
		[]string{"store"},
	)
	StoreBreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_breaker_transitions_total",
			Help: "Store breaker state changes",
		},
		[]string{"store", "from", "to"},
	)
	StoreBreakerRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_breaker_rejected_total",
			Help: "Store calls refused while the breaker was open",
		},
		[]string{"store"},
	)
)

// RegisterMetrics exposes the breaker collectors through reg. Registering
// twice with the same registry is a no-op.
func RegisterMetrics(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{StoreBreakerState, StoreBreakerTransitions, StoreBreakerRejected} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register breaker metric: %w", err)
		}
	}
	return nil
}
