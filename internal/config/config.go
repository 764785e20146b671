// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, logging, the link store, the redirect cache, IP geolocation, scan
// tracking, authentication, rate limiting and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "qrlink-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CacheConfig defines the redirect/geolocation cache backend.
// An empty RedisURL selects the in-process backend.
type CacheConfig struct {
	RedisURL      string        // REDIS_URL (redis://host:6379/0)
	RedisPassword string        // REDIS_PASSWORD, overrides the URL password
	OpTimeout     time.Duration // per-operation budget; exceeded => treated as a miss
	RedirectTTL   time.Duration // redirect:<slug> lifetime
	GeoTTL        time.Duration // ipgeo:<ip> lifetime
}

// GeoConfig defines the IP geolocation provider.
type GeoConfig struct {
	Token   string        // GEO_API_TOKEN; empty disables lookups
	BaseURL string        // GEO_BASE_URL (ipinfo compatible)
	Timeout time.Duration // GEO_TIMEOUT, capped at 3s
}

// TrackerConfig sizes the asynchronous scan recorder.
type TrackerConfig struct {
	Workers    int           // TRACKER_WORKERS
	QueueSize  int           // TRACKER_QUEUE_SIZE
	JobTimeout time.Duration // TRACKER_JOB_TIMEOUT
}

// AuthConfig defines how owner identity is established for management routes.
type AuthConfig struct {
	JWTSecret       string // AUTH_JWT_SECRET (HS256)
	JWTIssuer       string // AUTH_JWT_ISSUER; empty skips the issuer check
	AllowUserHeader bool   // AUTH_ALLOW_USER_HEADER trusts X-User-ID (dev/test only)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Store
	DatabaseURL    string // postgres DSN; wins over DBPath when set
	DBPath         string // SQLite path
	DBMaxOpenConns int    // pool size (0 = driver default)

	Cache   CacheConfig
	Geo     GeoConfig
	Tracker TrackerConfig
	Auth    AuthConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// maxGeoTimeout bounds the provider call so enrichment never stalls a worker.
const maxGeoTimeout = 3 * time.Second

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Store
		DatabaseURL:    strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBPath:         getenv("DB_PATH", "qrlink.db"),
		DBMaxOpenConns: getint("DB_MAX_OPEN_CONNS", 0),

		Cache: CacheConfig{
			RedisURL:      strings.TrimSpace(getenv("REDIS_URL", "")),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			OpTimeout:     getdur("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			RedirectTTL:   getdur("REDIRECT_CACHE_TTL", time.Hour),
			GeoTTL:        getdur("GEO_CACHE_TTL", 30*24*time.Hour),
		},
		Geo: GeoConfig{
			Token:   strings.TrimSpace(getenv("GEO_API_TOKEN", "")),
			BaseURL: strings.TrimRight(getenv("GEO_BASE_URL", "https://ipinfo.io"), "/"),
			Timeout: getdur("GEO_TIMEOUT", maxGeoTimeout),
		},
		Tracker: TrackerConfig{
			Workers:    getint("TRACKER_WORKERS", 4),
			QueueSize:  getint("TRACKER_QUEUE_SIZE", 1024),
			JobTimeout: getdur("TRACKER_JOB_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:       getenv("AUTH_JWT_SECRET", ""),
			JWTIssuer:       getenv("AUTH_JWT_ISSUER", ""),
			AllowUserHeader: getbool("AUTH_ALLOW_USER_HEADER", false),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "qrlink-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Geo.Timeout > maxGeoTimeout {
		cfg.Geo.Timeout = maxGeoTimeout
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty when DATABASE_URL is unset")
	}
	if cfg.DBMaxOpenConns < 0 {
		return cfg, errors.New("DB_MAX_OPEN_CONNS must be >= 0")
	}
	if cfg.Cache.OpTimeout <= 0 {
		return cfg, errors.New("CACHE_OP_TIMEOUT must be > 0")
	}
	if cfg.Cache.RedirectTTL <= 0 || cfg.Cache.GeoTTL <= 0 {
		return cfg, errors.New("cache TTLs must be positive durations")
	}
	if cfg.Geo.Timeout <= 0 {
		return cfg, errors.New("GEO_TIMEOUT must be > 0")
	}
	if cfg.Tracker.Workers < 1 {
		return cfg, errors.New("TRACKER_WORKERS must be >= 1")
	}
	if cfg.Tracker.QueueSize < 1 {
		return cfg, errors.New("TRACKER_QUEUE_SIZE must be >= 1")
	}
	if cfg.Tracker.JobTimeout <= 0 {
		return cfg, errors.New("TRACKER_JOB_TIMEOUT must be > 0")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowUserHeader {
		return cfg, errors.New("AUTH_JWT_SECRET must be set unless AUTH_ALLOW_USER_HEADER is enabled")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// UsesPostgres reports whether the store should be opened with the postgres driver.
func (c Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
