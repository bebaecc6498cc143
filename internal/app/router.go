package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/device"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/wishlist"
)

// Router builds the HTTP surface over d.
func (d *Dependencies) Router() http.Handler {
	cfg := d.Config

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: d.Catalog, Coupons: d.Coupons})
	cartHandler := &cart.Handler{Svc: d.Cart, Products: d.Catalog}
	wishlistHandler := &wishlist.Handler{Svc: d.Wishlist, Cart: d.Cart, Products: d.Catalog}
	authHandler := &auth.Handler{Service: d.Auth}
	authMiddleware := auth.Middleware{Service: d.Auth}
	healthHandler := health.Handler{Probes: d.Probes()}

	devices := device.NewResolver(cfg.DeviceHeader, cfg.DefaultDeviceID)
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL, Scope: func(r *http.Request) string {
		id, _ := device.FromContext(r.Context())
		return id
	}}
	authLimit := ratelimit.Handler{
		Limiter: d.Limiter,
		Config: ratelimit.Config{
			Scope:  "auth",
			Key:    ratelimit.ByDevice,
			Window: cfg.AuthRateLimitWindow,
			Max:    cfg.AuthRateLimitMax,
		},
		OnError: func(err error) { d.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.EnableTracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.EnablePrometheus {
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.HTTPBuckets), d.Registry)}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", devices.HeaderName},
		ExposedHeaders:   []string{devices.HeaderName, "X-Total-Count", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.EnablePrometheus {
		r.Handle("/metrics", obs.MetricsHandler(d.Registry))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
		v.Use(devices.Middleware)
		v.Use(authMiddleware.Authenticate)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductDetail)
		v.Get("/coupons", catalogHandler.Coupons)

		v.Route("/auth", func(a chi.Router) {
			a.Get("/session", authHandler.Session)
			a.Post("/logout", authHandler.Logout)
			a.Group(func(limited chi.Router) {
				limited.Use(authLimit.Middleware)
				limited.Post("/login", authHandler.Login)
				limited.Post("/signup", authHandler.Signup)
			})
		})

		v.Route("/cart", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Delete("/", cartHandler.Clear)
				g.Post("/items", cartHandler.AddItem)
				g.Patch("/items/{productId}", cartHandler.UpdateItem)
				g.Delete("/items/{productId}", cartHandler.RemoveItem)
				g.Post("/coupon", cartHandler.ApplyCoupon)
				g.Delete("/coupon", cartHandler.RemoveCoupon)
				g.With(authMiddleware.RequireAuth).Post("/checkout", cartHandler.Checkout)
			})
		})

		v.Route("/wishlist", func(wl chi.Router) {
			wl.Get("/", wishlistHandler.List)
			wl.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", wishlistHandler.Add)
				g.Delete("/", wishlistHandler.Clear)
				g.Delete("/{productId}", wishlistHandler.Remove)
				g.Post("/{productId}/move-to-cart", wishlistHandler.MoveToCart)
			})
		})
	})

	if !cfg.EnableTracing {
		return r
	}
	return otelhttp.NewHandler(r, "http.server", otelhttp.WithFilter(func(req *http.Request) bool {
		return req.URL.Path != "/metrics" && req.URL.Path != "/health/live"
	}))
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
