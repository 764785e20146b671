// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// authentication, CORS, security headers, idempotency, and rate limiting.
//
// Route layout:
//   - GET|HEAD /{slug}           public redirect, never rate limited
//   - GET /health, GET /ready    probes
//   - GET /metrics               Prometheus
//   - GET /swagger/*any          API docs (optional)
//   - {APIBasePath}/...          owner API (auth, idempotency, rate limit, gzip)
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/cache"
	"github.com/tbourn/go-qrlink-backend/internal/config"
	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/http/handlers"
	"github.com/tbourn/go-qrlink-backend/internal/http/middleware"
	"github.com/tbourn/go-qrlink-backend/internal/repo"
	"github.com/tbourn/go-qrlink-backend/internal/services"
)

// maxBodyBytes caps request bodies; design payloads are the largest input.
const maxBodyBytes = 1 << 20

// repoShim adapts the repository free functions to the ShortLinkRepo and
// AnalyticsRepo interfaces expected by the services.
type repoShim struct{}

func (repoShim) CreateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error {
	return repo.CreateShortLink(ctx, db, l)
}

func (repoShim) GetShortLinkBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ShortLink, error) {
	return repo.GetShortLinkBySlug(ctx, db, slug)
}

func (repoShim) SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error) {
	return repo.SlugExists(ctx, db, slug, excludeID)
}

func (repoShim) GetShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.ShortLink, error) {
	return repo.GetShortLink(ctx, db, id, ownerID)
}

func (repoShim) CountShortLinks(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.CountShortLinks(ctx, db, ownerID)
}

func (repoShim) ListShortLinksPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.ShortLink, error) {
	return repo.ListShortLinksPage(ctx, db, ownerID, offset, limit)
}

func (repoShim) UpdateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error {
	return repo.UpdateShortLink(ctx, db, l)
}

func (repoShim) DeleteShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	return repo.DeleteShortLink(ctx, db, id, ownerID)
}

func (repoShim) OwnedShortLinkIDs(ctx context.Context, db *gorm.DB, ownerID string, ids []string) ([]string, error) {
	return repo.OwnedShortLinkIDs(ctx, db, ownerID, ids)
}

func (repoShim) CountScans(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	return repo.CountScans(ctx, db, ids)
}

func (repoShim) UserAgentCounts(ctx context.Context, db *gorm.DB, ids []string) ([]repo.UserAgentCount, error) {
	return repo.UserAgentCounts(ctx, db, ids)
}

func (repoShim) CountryCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error) {
	return repo.CountryCounts(ctx, db, ids, limit)
}

func (repoShim) RegionCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error) {
	return repo.RegionCounts(ctx, db, ids, limit)
}

func (repoShim) CityCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error) {
	return repo.CityCounts(ctx, db, ids, limit)
}

// Deps are the runtime collaborators of the HTTP layer.
type Deps struct {
	DB *gorm.DB
	// Cache backs redirects and slug reservations. Nil selects a private
	// in-process cache.
	Cache *cache.Cache
	// Tracker records scans; nil disables tracking.
	Tracker handlers.ScanTracker
	// Ready overrides the dependencies probed by /ready. Nil probes the
	// database and the cache.
	Ready map[string]handlers.Pinger
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Identify: resolve the owner from JWT or X-User-ID
//  8. CORS and Security headers
//
// The API group then adds RequireOwner, the Idempotency-Key validator (it
// needs the owner), the rate limiter and gzip. Redirects skip all four.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.Identify(middleware.AuthOptions{
		Secret:          cfg.Auth.JWTSecret,
		Issuer:          cfg.Auth.JWTIssuer,
		AllowUserHeader: cfg.Auth.AllowUserHeader,
	}))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, handlers.MsgRouteNotFound)
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, handlers.MsgMethodNotAllowed)
	})

	rc := deps.Cache
	if rc == nil {
		rc = cache.New(cache.NewMemory(time.Minute), cache.Options{
			OpTimeout:   cfg.Cache.OpTimeout,
			RedirectTTL: cfg.Cache.RedirectTTL,
		})
	}
	ready := deps.Ready
	if ready == nil {
		ready = map[string]handlers.Pinger{
			"database": handlers.PingFunc(func(context.Context) error { return repo.Ping(deps.DB) }),
			"cache":    rc,
		}
	}

	linkSvc := services.NewShortLinkService(deps.DB, repoShim{}, rc, reservedSlugs(cfg.APIBasePath)...)
	analyticsSvc := services.NewAnalyticsService(deps.DB, repoShim{})
	h := handlers.New(linkSvc, analyticsSvc, deps.Tracker, handlers.Options{
		DB:             deps.DB,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Ready:          ready,
	})

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByOwnerOrIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.RequireOwner(),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			idempotencyLookup(deps.DB),
		),
		rl.Handler(),
		gzip.Gzip(gzip.DefaultCompression),
	)
	{
		api.POST("/links", h.CreateLink)
		api.GET("/links", h.ListLinks)
		api.GET("/links/:id", h.GetLink)
		api.PUT("/links/:id", h.UpdateLink)
		api.DELETE("/links/:id", h.DeleteLink)

		api.POST("/analytics", h.Analytics)
	}

	// Registered last so the static routes above take precedence.
	r.GET("/:slug", h.Redirect)
	r.HEAD("/:slug", h.Redirect)
}

func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, ownerID, scope, key string, now time.Time) (bool, error) {
		_, err := repo.GetIdempotency(ctx, db, ownerID, scope, key, now)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return false, nil
		case err != nil:
			return false, err
		}
		return true, nil
	}
}

// corsMiddleware allows every origin when none are configured. Otherwise the
// allowlisted Origin is echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match",
		},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// ACAO is set even without an Origin header so probes see it too.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// reservedSlugs lists the top-level path segments owned by the service so they
// can never be claimed as slugs.
func reservedSlugs(apiBase string) []string {
	out := []string{"health", "ready", "metrics", "swagger", "api"}
	seg, _, _ := strings.Cut(strings.Trim(apiBase, "/"), "/")
	switch seg {
	case "api":
	case "":
		// API mounted at root: its collections shadow slugs.
		out = append(out, "links", "analytics")
	default:
		out = append(out, seg)
	}
	return out
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Requests exceeding the cap cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
