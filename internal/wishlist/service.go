package wishlist

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

// ErrNotOnWishlist is returned by move-to-cart for ids that were never saved.
var ErrNotOnWishlist = errors.New("product is not on the wishlist")

// Service loads a device's wishlist per call under the device lock.
type Service struct {
	Store  storage.Store
	Locker lock.Locker
	Logger zerolog.Logger
}

// Items returns the device's wishlist.
func (s *Service) Items(ctx context.Context, deviceID string) ([]Item, error) {
	return s.Mutate(ctx, deviceID, func(context.Context, *List) error { return nil })
}

// Mutate runs fn against the device's list and returns the resulting items.
func (s *Service) Mutate(ctx context.Context, deviceID string, fn func(context.Context, *List) error) ([]Item, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("wishlist service not configured")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, errors.New("wishlist: device id is required")
	}
	var out []Item
	run := func(ctx context.Context) error {
		l, err := Load(ctx, storage.Namespace(s.Store, deviceID), s.Logger.With().Str("device", deviceID).Logger())
		if err != nil {
			return err
		}
		ferr := fn(ctx, l)
		out = l.Items()
		return ferr
	}
	if s.Locker != nil {
		err := s.Locker.WithLock(ctx, lock.DeviceKey(deviceID), run)
		return out, err
	}
	err := run(ctx)
	return out, err
}
