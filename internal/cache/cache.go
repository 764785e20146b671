// Package cache provides the key-value layer that sits in front of the link
// store and the geolocation provider.
//
// Keys live in namespaces ("redirect", "ipgeo") and are stored as
// "<namespace>:<key>" in the backing store. Every operation runs under a short
// per-call timeout, and the Cache never surfaces transport errors: failures
// are logged, counted in Prometheus, and degrade to "absent" (reads) or a
// no-op (writes). Callers therefore treat the cache as an optimization that
// can disappear at any moment.
//
// Two backends are provided: Redis (go-redis) for shared deployments and an
// in-process TTL map (go-cache) for single-node setups and tests.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Namespace partitions the key space.
type Namespace string

const (
	// NamespaceRedirect holds redirect:<slug> entries.
	NamespaceRedirect Namespace = "redirect"
	// NamespaceGeo holds ipgeo:<ip> entries.
	NamespaceGeo Namespace = "ipgeo"
)

// Backend is the raw store the Cache delegates to. A missing key is reported
// as found=false with a nil error.
type Backend interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Options configures a Cache. Zero values fall back to package defaults.
type Options struct {
	OpTimeout   time.Duration
	RedirectTTL time.Duration
	GeoTTL      time.Duration
}

const (
	defaultOpTimeout   = 250 * time.Millisecond
	defaultRedirectTTL = time.Hour
	defaultGeoTTL      = 30 * 24 * time.Hour
)

// Cache is a namespaced, failure-absorbing wrapper around a Backend.
// It is safe for concurrent use.
type Cache struct {
	backend     Backend
	opTimeout   time.Duration
	redirectTTL time.Duration
	geoTTL      time.Duration
}

var cacheOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_operations_total",
		Help: "Cache operations by namespace, operation and result (hit, miss, ok, error).",
	},
	[]string{"namespace", "op", "result"},
)

func init() {
	prometheus.MustRegister(cacheOps)
}

// New wraps b with the given options.
func New(b Backend, opts Options) *Cache {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	if opts.RedirectTTL <= 0 {
		opts.RedirectTTL = defaultRedirectTTL
	}
	if opts.GeoTTL <= 0 {
		opts.GeoTTL = defaultGeoTTL
	}
	return &Cache{
		backend:     b,
		opTimeout:   opts.OpTimeout,
		redirectTTL: opts.RedirectTTL,
		geoTTL:      opts.GeoTTL,
	}
}

// GeoTTL is the lifetime applied to ipgeo entries.
func (c *Cache) GeoTTL() time.Duration { return c.geoTTL }

// RedirectTTL is the lifetime applied to redirect entries.
func (c *Cache) RedirectTTL() time.Duration { return c.redirectTTL }

// Get returns the value stored under ns:key. Errors and timeouts read as a miss.
func (c *Cache) Get(ctx context.Context, ns Namespace, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	v, found, err := c.backend.Get(ctx, fullKey(ns, key))
	switch {
	case err != nil:
		c.degraded(ns, "get", key, err)
		return "", false
	case !found:
		cacheOps.WithLabelValues(string(ns), "get", "miss").Inc()
		return "", false
	default:
		cacheOps.WithLabelValues(string(ns), "get", "hit").Inc()
		return v, true
	}
}

// SetWithTTL stores value under ns:key for ttl. Failures are logged only.
func (c *Cache) SetWithTTL(ctx context.Context, ns Namespace, key, value string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Set(ctx, fullKey(ns, key), value, ttl); err != nil {
		c.degraded(ns, "set", key, err)
		return
	}
	cacheOps.WithLabelValues(string(ns), "set", "ok").Inc()
}

// Delete removes ns:key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, ns Namespace, key string) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Del(ctx, fullKey(ns, key)); err != nil {
		c.degraded(ns, "delete", key, err)
		return
	}
	cacheOps.WithLabelValues(string(ns), "delete", "ok").Inc()
}

// Exists reports whether ns:key is present. Errors read as absent.
func (c *Cache) Exists(ctx context.Context, ns Namespace, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	ok, err := c.backend.Exists(ctx, fullKey(ns, key))
	if err != nil {
		c.degraded(ns, "exists", key, err)
		return false
	}
	if ok {
		cacheOps.WithLabelValues(string(ns), "exists", "hit").Inc()
	} else {
		cacheOps.WithLabelValues(string(ns), "exists", "miss").Inc()
	}
	return ok
}

// Ping checks backend reachability (readiness probe). Unlike the data
// operations it does return the error.
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.backend.Ping(ctx)
}

// Close releases backend resources.
func (c *Cache) Close() error { return c.backend.Close() }

func (c *Cache) degraded(ns Namespace, op, key string, err error) {
	cacheOps.WithLabelValues(string(ns), op, "error").Inc()
	ev := log.Warn().Err(err).Str("namespace", string(ns)).Str("op", op).Str("key", key)
	if errors.Is(err, context.DeadlineExceeded) {
		ev = ev.Bool("timeout", true)
	}
	ev.Msg("cache degraded")
}

func fullKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}
