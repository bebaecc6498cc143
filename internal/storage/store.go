// Package storage is the durable key-value layer behind the cart, wishlist and
// session state. Values are opaque bytes; JSON helpers cover the common case.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Store is a generic durable key-value backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// GetJSON loads key into dst. It reports false without error when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// Namespaced prefixes every key with "<prefix>:" before delegating.
type Namespaced struct {
	Store  Store
	Prefix string
}

// Namespace wraps s so all keys live under prefix.
func Namespace(s Store, prefix string) Namespaced {
	return Namespaced{Store: s, Prefix: strings.TrimSpace(prefix)}
}

func (n Namespaced) key(k string) string {
	if n.Prefix == "" {
		return k
	}
	return n.Prefix + ":" + k
}

// Get implements Store.
func (n Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.Store.Get(ctx, n.key(key))
}

// Set implements Store.
func (n Namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.Store.Set(ctx, n.key(key), value)
}

// Delete implements Store.
func (n Namespaced) Delete(ctx context.Context, keys ...string) error {
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, n.key(k))
	}
	return n.Store.Delete(ctx, prefixed...)
}

// Ping implements Store.
func (n Namespaced) Ping(ctx context.Context) error {
	return n.Store.Ping(ctx)
}
