// Package app assembles the storefront's services from configuration and
// exposes them as one HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/coupon"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/storage"
	"github.com/noah-isme/toko-storefront/internal/wishlist"
)

// Dependencies holds the shared clients and domain services.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *prometheus.Registry

	Store   storage.Store
	Redis   *redis.Client
	DB      *pgxpool.Pool
	Locker  lock.Locker
	Limiter ratelimit.Allower

	Coupons  *coupon.Catalog
	Catalog  *catalog.Service
	Auth     *auth.Service
	Cart     *cart.Service
	Wishlist *wishlist.Service

	closers []func() error
}

// Build connects the configured backends and constructs every service. Redis,
// when REDIS_URL is set, also backs the lock, rate limiter, idempotency keys
// and catalog cache regardless of the store backend.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	d.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, d.Registry)
	if err := resilience.RegisterMetrics(d.Registry); err != nil {
		return nil, err
	}

	if err := d.connect(ctx); err != nil {
		_ = d.Close()
		return nil, err
	}

	d.Coupons = coupon.NewDefaultCatalog()
	d.Coupons.Now = cfg.CouponClock()

	var cacheClient redis.UniversalClient
	if d.Redis != nil {
		cacheClient = d.Redis
	}
	seed, err := catalog.DefaultProducts()
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("load products: %w", err)
	}
	products, err := catalog.NewService(catalog.ServiceConfig{
		Products: seed,
		Cache:    catalog.NewCache(cacheClient, cfg.CatalogCacheTTL),
		Latency:  cfg.CatalogLatency,
	})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("initialise catalog: %w", err)
	}
	d.Catalog = products

	authSvc, err := auth.NewService(auth.Config{
		Store:     d.Store,
		Secret:    cfg.JWTSecret,
		TokenTTL:  cfg.AccessTokenTTL,
		Latency:   cfg.SimulatedLatency,
		ClockSkew: 30 * time.Second,
		Logger:    logger.With().Str("component", "auth").Logger(),
		Locker:    d.Locker,
	})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("initialise auth: %w", err)
	}
	d.Auth = authSvc

	d.Cart = &cart.Service{
		Store:   d.Store,
		Coupons: d.Coupons,
		Locker:  d.Locker,
		Logger:  logger.With().Str("component", "cart").Logger(),
	}
	d.Wishlist = &wishlist.Service{
		Store:  d.Store,
		Locker: d.Locker,
		Logger: logger.With().Str("component", "wishlist").Logger(),
	}
	return d, nil
}

func (d *Dependencies) connect(ctx context.Context) error {
	cfg := d.Config
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		d.closers = append(d.closers, client.Close)
		if cfg.EnableTracing {
			if err := redisotel.InstrumentTracing(client); err != nil {
				d.Logger.Error().Err(err).Msg("instrument redis tracing")
			}
		}
		if cfg.EnablePrometheus {
			if err := redisotel.InstrumentMetrics(client); err != nil {
				d.Logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		d.Redis = client
		d.Locker = lock.RedisLocker{R: client, TTL: cfg.LockTTL}
		d.Limiter = ratelimit.Limiter{Client: client, Prefix: "ratelimit:"}
	} else {
		d.Locker = lock.NewLocalLocker()
		d.Limiter = ratelimit.NewMemoryLimiter("ratelimit")
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		d.Store = storage.NewRedisStore(d.Redis, "storefront:")
	case config.BackendPostgres:
		pool, err := storage.Connect(ctx, cfg.DatabaseURL, obs.PGXTracer{Table: "kv_entries"})
		if err != nil {
			return err
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		if err := storage.Migrate(ctx, pool); err != nil {
			return err
		}
		d.DB = pool
		d.Store = storage.PostgresStore{Q: pool}
	default:
		d.Store = storage.NewMemoryStore()
	}
	if cfg.StoreBackend != config.BackendMemory {
		breaker := resilience.NewBreaker(cfg.StoreBackend, resilience.DefaultPolicy, d.Logger.With().Str("component", "store").Logger())
		d.Store = resilience.Guard(d.Store, breaker)
	}
	d.Logger.Info().Str("backend", cfg.StoreBackend).Bool("redis", d.Redis != nil).Msg("store ready")
	return nil
}

// Probes lists the readiness checks for the connected backends.
func (d *Dependencies) Probes() []health.Probe {
	probes := []health.Probe{{Name: "store", Pinger: d.Store}}
	if d.Redis != nil && d.Config.StoreBackend != config.BackendRedis {
		probes = append(probes, health.Probe{Name: "redis", Pinger: redisPinger{d.Redis}, Timeout: 300 * time.Millisecond})
	}
	return probes
}

// Close releases every client opened by Build.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
