package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const couponDateLayout = "2006-01-02"

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreBackend       string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	CORSAllowedOrigins []string

	DeviceHeader    string
	DefaultDeviceID string

	SimulatedLatency    time.Duration
	CatalogLatency      time.Duration
	CatalogCacheTTL     time.Duration
	CouponReferenceDate time.Time

	SecurityHeaders bool
	EnableHSTS      bool
	MaxBodyBytes    int64

	LockTTL             time.Duration
	IdempotencyTTL      time.Duration
	AuthRateLimitMax    int
	AuthRateLimitWindow time.Duration

	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	HTTPBuckets          string
	EnablePrometheus     bool
	EnableTracing        bool
	OTLPEndpoint         string
	TracingSamplingRatio float64
	ShutdownTimeout      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             strings.ToLower(valueOrDefault(k.String("APP_ENV"), "development")),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		StoreBackend:       strings.ToLower(valueOrDefault(k.String("STORE_BACKEND"), BackendMemory)),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          strings.TrimSpace(k.String("JWT_SECRET")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "24h"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DeviceHeader:    valueOrDefault(k.String("DEVICE_HEADER"), "X-Device-ID"),
		DefaultDeviceID: strings.TrimSpace(k.String("DEFAULT_DEVICE_ID")),

		SimulatedLatency: parseDuration(k.String("SIMULATED_LATENCY"), "1s"),
		CatalogLatency:   parseDuration(k.String("CATALOG_LATENCY"), "0s"),
		CatalogCacheTTL:  parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),

		SecurityHeaders: parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		EnableHSTS:      parseBoolDefault(k.String("SECURITY_HSTS"), false),
		MaxBodyBytes:    int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),

		LockTTL:             parseDuration(k.String("LOCK_TTL"), "5s"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		AuthRateLimitMax:    parseInt(k.String("AUTH_RATE_LIMIT_MAX"), 10),
		AuthRateLimitWindow: parseDuration(k.String("AUTH_RATE_LIMIT_WINDOW"), "1m"),

		LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		HTTPBuckets:          strings.TrimSpace(k.String("OBS_HTTP_BUCKETS")),
		EnablePrometheus:     parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
		EnableTracing:        parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:         strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio: parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		ShutdownTimeout:      parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
	}

	if raw := strings.TrimSpace(k.String("COUPON_REFERENCE_DATE")); raw != "" {
		ref, err := time.Parse(couponDateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("COUPON_REFERENCE_DATE must be YYYY-MM-DD: %w", err)
		}
		cfg.CouponReferenceDate = ref
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis store backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store backend")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		if !c.IsLocal() {
			return errors.New("JWT_SECRET is required")
		}
		c.JWTSecret = "dev-secret"
	}
	if c.AuthRateLimitMax < 0 {
		return errors.New("AUTH_RATE_LIMIT_MAX must not be negative")
	}
	return nil
}

// IsLocal reports whether the app runs in development or test mode.
func (c *Config) IsLocal() bool {
	return c.AppEnv == "development" || c.AppEnv == "test"
}

// CouponClock returns the clock used for coupon expiry checks. It pins
// "today" to CouponReferenceDate when one is configured.
func (c *Config) CouponClock() func() time.Time {
	if c.CouponReferenceDate.IsZero() {
		return time.Now
	}
	ref := c.CouponReferenceDate
	return func() time.Time { return ref }
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
