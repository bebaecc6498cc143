package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

// GuardedStore routes every store call through a Breaker so a dead backend
// fails fast with ErrOpenCircuit.
type GuardedStore struct {
	Store   storage.Store
	Breaker *Breaker
}

// Guard wraps store with breaker.
func Guard(store storage.Store, breaker *Breaker) GuardedStore {
	return GuardedStore{Store: store, Breaker: breaker}
}

func (g GuardedStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		value, err = g.Store.Get(ctx, key)
		return err
	})
	return value, err
}

func (g GuardedStore) Set(ctx context.Context, key string, value []byte) error {
	return g.call(ctx, func(ctx context.Context) error { return g.Store.Set(ctx, key, value) })
}

func (g GuardedStore) Delete(ctx context.Context, keys ...string) error {
	return g.call(ctx, func(ctx context.Context) error { return g.Store.Delete(ctx, keys...) })
}

// Ping bypasses the breaker so readiness reflects the real backend.
func (g GuardedStore) Ping(ctx context.Context) error {
	return g.Store.Ping(ctx)
}

func (g GuardedStore) call(ctx context.Context, op func(context.Context) error) error {
	if g.Breaker == nil {
		return op(ctx)
	}
	err := g.Breaker.Call(ctx, op)
	if errors.Is(err, ErrOpenCircuit) {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return err
}
