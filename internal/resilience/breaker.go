// Package resilience keeps an unreachable Redis or Postgres store from
// stalling every cart and wishlist request.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

// ErrOpenCircuit is returned instead of calling the store while the breaker is open.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State int

const (
	// Closed passes every call through and counts outcomes.
	Closed State = iota
	// Open refuses calls until the cooldown has elapsed.
	Open
	// HalfOpen lets a single trial call decide between Closed and Open.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Policy sets when the breaker trips and how long it stays open.
type Policy struct {
	// MinCalls is the number of counted calls before the ratio is checked.
	MinCalls int
	// FailureRatio trips the breaker once failures/calls reaches it.
	FailureRatio float64
	// Cooldown is how long the breaker stays open before a trial call.
	Cooldown time.Duration
}

// DefaultPolicy guards the remote stores.
var DefaultPolicy = Policy{MinCalls: 5, FailureRatio: 0.5, Cooldown: 10 * time.Second}

func (p Policy) normalised() Policy {
	if p.MinCalls <= 0 {
		p.MinCalls = 1
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = DefaultPolicy.FailureRatio
	}
	if p.Cooldown <= 0 {
		p.Cooldown = DefaultPolicy.Cooldown
	}
	return p
}

type outcome int

const (
	healthy outcome = iota
	unhealthy
	ignored
)

// classify accounts a store result. A miss is a healthy answer. An error
// caused by the caller's own context ending says nothing about the store,
// while a driver timeout under a live context does.
func classify(ctx context.Context, err error) outcome {
	switch {
	case err == nil, errors.Is(err, storage.ErrNotFound):
		return healthy
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return ignored
	default:
		return unhealthy
	}
}

// Breaker tracks the failure ratio of one store.
type Breaker struct {
	// Now is the breaker's clock; time.Now when nil.
	Now func() time.Time

	store  string
	policy Policy
	log    zerolog.Logger

	mu       sync.Mutex
	state    State
	calls    int
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker returns a closed breaker for the named store.
func NewBreaker(store string, policy Policy, log zerolog.Logger) *Breaker {
	if store == "" {
		store = "store"
	}
	b := &Breaker{store: store, policy: policy.normalised(), log: log}
	StoreBreakerState.WithLabelValues(store).Set(0)
	return b
}

// State reports the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs op unless the breaker is open and accounts its result.
func (b *Breaker) Call(ctx context.Context, op func(context.Context) error) error {
	trial, ok := b.admit()
	if !ok {
		StoreBreakerRejected.WithLabelValues(b.store).Inc()
		return ErrOpenCircuit
	}
	err := op(ctx)
	b.settle(trial, classify(ctx, err))
	return err
}

func (b *Breaker) admit() (trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return false, true
	case Open:
		if b.now().Sub(b.openedAt) < b.policy.Cooldown {
			return false, false
		}
		b.moveLocked(HalfOpen)
	}
	if b.trial {
		return false, false
	}
	b.trial = true
	return true, true
}

func (b *Breaker) settle(trial bool, o outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trial = false
		switch o {
		case healthy:
			b.moveLocked(Closed)
		case unhealthy:
			b.moveLocked(Open)
		}
		return
	}
	// Calls admitted before a trip finish after it; they no longer count.
	if b.state != Closed || o == ignored {
		return
	}
	b.calls++
	if o == unhealthy {
		b.failures++
	}
	if b.calls < b.policy.MinCalls {
		return
	}
	if float64(b.failures)/float64(b.calls) >= b.policy.FailureRatio {
		b.moveLocked(Open)
		return
	}
	if b.calls >= 2*b.policy.MinCalls {
		b.calls /= 2
		b.failures /= 2
	}
}

func (b *Breaker) moveLocked(next State) {
	prev := b.state
	if prev == next {
		return
	}
	evt := b.log.Info()
	if next == Open {
		b.openedAt = b.now()
		evt = b.log.Warn().Int("failures", b.failures).Int("calls", b.calls).Dur("cooldown", b.policy.Cooldown)
	}
	b.state = next
	b.calls, b.failures = 0, 0

	StoreBreakerState.WithLabelValues(b.store).Set(float64(next))
	StoreBreakerTransitions.WithLabelValues(b.store, prev.String(), next.String()).Inc()
	evt.Str("store", b.store).Str("from", prev.String()).Str("to", next.String()).Msg("store breaker moved")
}

func (b *Breaker) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
