package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainMu sync.Mutex

	// CartMutationsTotal counts cart engine transitions by operation.
	CartMutationsTotal *prometheus.CounterVec
	// CouponValidationsTotal counts coupon validation outcomes by result (ok or rejection reason).
	CouponValidationsTotal *prometheus.CounterVec
	// CouponAutoDetachTotal counts coupons dropped after a cart mutation invalidated them.
	CouponAutoDetachTotal prometheus.Counter
	// StorePersistFailuresTotal counts failed durable writes by logical key.
	StorePersistFailuresTotal *prometheus.CounterVec
	// AuthAttemptsTotal counts mock auth operations by outcome.
	AuthAttemptsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises the domain collectors on first use and
// registers them with reg. Later calls reuse the same collectors, so the
// counters survive being exposed through more than one registry.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainMu.Lock()
	defer domainMu.Unlock()
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if CartMutationsTotal == nil {
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Count of cart state transitions by operation.",
		}, []string{"op"})
		CouponValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Count of coupon validations by result.",
		}, []string{"result"})
		CouponAutoDetachTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_auto_detach_total",
			Help:      "Number of coupons detached because the cart no longer qualified.",
		})
		StorePersistFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_persist_failures_total",
			Help:      "Count of failed durable store writes by key.",
		}, []string{"key"})
		AuthAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Count of auth operations by outcome.",
		}, []string{"op", "result"})
	}

	mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			CartMutationsTotal = v
		}
	})
	mustRegisterCollector(reg, CouponValidationsTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			CouponValidationsTotal = v
		}
	})
	mustRegisterCollector(reg, CouponAutoDetachTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(prometheus.Counter); ok {
			CouponAutoDetachTotal = v
		}
	})
	mustRegisterCollector(reg, StorePersistFailuresTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			StorePersistFailuresTotal = v
		}
	})
	mustRegisterCollector(reg, AuthAttemptsTotal, func(existing prometheus.Collector) {
		if v, ok := existing.(*prometheus.CounterVec); ok {
			AuthAttemptsTotal = v
		}
	})
}

// CountCartMutation increments CartMutationsTotal when registered.
func CountCartMutation(op string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op).Inc()
	}
}

// CountCouponValidation increments CouponValidationsTotal when registered.
func CountCouponValidation(result string) {
	if CouponValidationsTotal != nil {
		CouponValidationsTotal.WithLabelValues(result).Inc()
	}
}

// CountCouponAutoDetach increments CouponAutoDetachTotal when registered.
func CountCouponAutoDetach() {
	if CouponAutoDetachTotal != nil {
		CouponAutoDetachTotal.Inc()
	}
}

// CountPersistFailure increments StorePersistFailuresTotal when registered.
func CountPersistFailure(key string) {
	if StorePersistFailuresTotal != nil {
		StorePersistFailuresTotal.WithLabelValues(key).Inc()
	}
}

// CountAuthAttempt increments AuthAttemptsTotal when registered.
func CountAuthAttempt(op, result string) {
	if AuthAttemptsTotal != nil {
		AuthAttemptsTotal.WithLabelValues(op, result).Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
