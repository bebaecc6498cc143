package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

// Service loads a device's engine from the store for each call and runs
// mutations under the device lock.
type Service struct {
	Store   storage.Store
	Coupons CouponValidator
	Locker  lock.Locker
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Order is the confirmation returned by Checkout.
type Order struct {
	OrderID    string     `json:"orderId"`
	UserID     string     `json:"userId"`
	Items      []ItemView `json:"items"`
	ItemCount  int        `json:"itemCount"`
	CouponCode *string    `json:"couponCode"`
	Subtotal   string     `json:"subtotal"`
	Discount   string     `json:"discount"`
	Total      string     `json:"total"`
	PlacedAt   time.Time  `json:"placedAt"`
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Open loads the engine for deviceID without taking the lock. The engine must
// not be mutated outside Mutate.
func (s *Service) Open(ctx context.Context, deviceID string) (*Engine, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("cart service not configured")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required: %w", ErrInvalidInput)
	}
	return LoadEngine(ctx, EngineConfig{
		Coupons:    s.Coupons,
		Repository: NewStoreRepository(storage.Namespace(s.Store, deviceID)),
		Logger:     s.Logger.With().Str("device", deviceID).Logger(),
	})
}

// Snapshot returns the device's current cart.
func (s *Service) Snapshot(ctx context.Context, deviceID string) (State, error) {
	return s.Mutate(ctx, deviceID, func(context.Context, *Engine) error { return nil })
}

// Mutate runs fn against the device's engine while holding the device lock
// and returns the resulting state. The state is returned even when fn fails.
func (s *Service) Mutate(ctx context.Context, deviceID string, fn func(context.Context, *Engine) error) (State, error) {
	var out State
	run := func(ctx context.Context) error {
		e, err := s.Open(ctx, deviceID)
		if err != nil {
			return err
		}
		ferr := fn(ctx, e)
		out = e.Snapshot()
		return ferr
	}
	if s != nil && s.Locker != nil {
		err := s.Locker.WithLock(ctx, lock.DeviceKey(deviceID), run)
		return out, err
	}
	err := run(ctx)
	return out, err
}

// Checkout places a mock order for userID from the device's cart and clears it.
func (s *Service) Checkout(ctx context.Context, deviceID, userID string) (Order, error) {
	if strings.TrimSpace(userID) == "" {
		return Order{}, fmt.Errorf("user id is required: %w", ErrInvalidInput)
	}
	var order Order
	_, err := s.Mutate(ctx, deviceID, func(ctx context.Context, e *Engine) error {
		st := e.Snapshot()
		if st.IsEmpty() {
			return ErrEmptyCart
		}
		view := st.View()
		order = Order{
			OrderID:    uuid.NewString(),
			UserID:     userID,
			Items:      view.Items,
			ItemCount:  view.ItemCount,
			CouponCode: view.CouponCode,
			Subtotal:   view.Subtotal,
			Discount:   view.Discount,
			Total:      view.Total,
			PlacedAt:   s.now().UTC(),
		}
		e.Clear(ctx)
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	obs.CountCartMutation("checkout")
	s.Logger.Info().Str("device", deviceID).Str("user_id", userID).Str("order_id", order.OrderID).Str("total", order.Total).Msg("order placed")
	return order, nil
}
