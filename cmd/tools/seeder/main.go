package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/noah-isme/toko-storefront/internal/app"
	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/wishlist"
)

type demoUser struct {
	Name  string
	Email string
}

var demoUsers = []demoUser{
	{"Noah Developer", "noah@toko.com"},
	{"Budi Santoso", "budi@example.com"},
	{"Siti Aminah", "siti@example.com"},
}

const demoPassword = "password123"

func main() {
	deviceID := flag.String("device", "demo-device", "device whose cart and wishlist are seeded")
	coupon := flag.String("coupon", "SAVE10", "coupon to attach to the seeded cart; empty to skip")
	flag.Parse()

	cfg := config.MustLoad()
	cfg.SimulatedLatency = 0
	cfg.EnableTracing = false
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("tool", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() { _ = deps.Close() }()

	for _, u := range demoUsers {
		_, err := deps.Auth.Signup(ctx, *deviceID, u.Name, u.Email, demoPassword)
		switch {
		case errors.Is(err, auth.ErrEmailInUse):
			logger.Info().Str("email", u.Email).Msg("user already seeded")
		case err != nil:
			logger.Fatal().Err(err).Str("email", u.Email).Msg("seed user")
		default:
			logger.Info().Str("email", u.Email).Msg("user seeded")
		}
	}
	if err := deps.Auth.Logout(ctx, *deviceID); err != nil {
		logger.Fatal().Err(err).Msg("clear seeding session")
	}

	picks := map[int64]int{1: 1, 5: 2, 11: 3}
	state, err := deps.Cart.Mutate(ctx, *deviceID, func(ctx context.Context, e *cart.Engine) error {
		e.Clear(ctx)
		for _, id := range []int64{1, 5, 11} {
			p, ok := deps.Catalog.Lookup(id)
			if !ok {
				continue
			}
			if err := e.AddItem(ctx, cart.FromCatalog(p), picks[id]); err != nil {
				return err
			}
		}
		if *coupon != "" {
			if _, err := e.ApplyCoupon(ctx, *coupon); err != nil {
				logger.Warn().Err(err).Str("code", *coupon).Msg("coupon not applied")
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed cart")
	}
	view := state.View()
	logger.Info().Str("device", *deviceID).Int("items", view.ItemCount).Str("total", view.Total).Msg("cart seeded")

	items, err := deps.Wishlist.Mutate(ctx, *deviceID, func(ctx context.Context, l *wishlist.List) error {
		for _, id := range []int64{2, 12} {
			if p, ok := deps.Catalog.Lookup(id); ok {
				l.Add(ctx, wishlist.FromProduct(p))
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed wishlist")
	}
	logger.Info().Str("device", *deviceID).Int("items", len(items)).Msg("wishlist seeded")
}
