package storage_test

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

type sample struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func exerciseStore(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	found, err := storage.GetJSON(ctx, s, "missing", &sample{})
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, storage.SetJSON(ctx, s, "item", sample{ID: 7, Name: "Desk Lamp LED"}))
	var got sample
	found, err = storage.GetJSON(ctx, s, "item", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sample{ID: 7, Name: "Desk Lamp LED"}, got)

	require.NoError(t, s.Set(ctx, "flag", []byte("true")))
	require.NoError(t, s.Delete(ctx, "item", "flag"))
	_, err = s.Get(ctx, "item")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Get(ctx, "flag")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx))
	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, storage.NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := storage.NewRedisStore(client, "test:")
	exerciseStore(t, s)

	require.NoError(t, s.Set(context.Background(), "cart", []byte("[]")))
	raw, err := mr.Get("test:cart")
	require.NoError(t, err)
	require.Equal(t, "[]", raw)
	require.Zero(t, mr.TTL("test:cart"))
}

func TestRedisStorePropagatesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	s := storage.NewRedisStore(client, "")
	_, err := s.Get(context.Background(), "cart")
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestNamespacedPrefixesKeys(t *testing.T) {
	base := storage.NewMemoryStore()
	a := storage.Namespace(base, "device-a")
	b := storage.Namespace(base, "device-b")
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "cart", []byte("a")))
	require.NoError(t, b.Set(ctx, "cart", []byte("b")))

	raw, err := base.Get(ctx, "device-a:cart")
	require.NoError(t, err)
	require.Equal(t, "a", string(raw))

	require.NoError(t, a.Delete(ctx, "cart"))
	_, err = a.Get(ctx, "cart")
	require.ErrorIs(t, err, storage.ErrNotFound)
	got, err := b.Get(ctx, "cart")
	require.NoError(t, err)
	require.Equal(t, "b", string(got))
	require.Equal(t, 1, base.Len())
}
