// Command server runs the QR link redirect and tracking service.
//
// @title                      QR Link API
// @version                    1.0
// @description                Owner API for QR short links and scan analytics. Public redirects are served at /{slug}.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                HS256 JWT; the subject claim is the owner id.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/cache"
	"github.com/tbourn/go-qrlink-backend/internal/config"
	"github.com/tbourn/go-qrlink-backend/internal/docs"
	"github.com/tbourn/go-qrlink-backend/internal/geo"
	httpapi "github.com/tbourn/go-qrlink-backend/internal/http"
	"github.com/tbourn/go-qrlink-backend/internal/observability"
	"github.com/tbourn/go-qrlink-backend/internal/repo"
	"github.com/tbourn/go-qrlink-backend/internal/services"
	"github.com/tbourn/go-qrlink-backend/internal/sysutil"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const (
	shutdownTimeout = 15 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName)
	zerolog.DefaultContextLogger = &log.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Str("gin_mode", cfg.GinMode).
		Msg("starting qrlink")

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer flush("otel", shutdownOTel)

	dsn := sysutil.FirstNonEmpty(cfg.DatabaseURL, cfg.DBPath)
	db, err := repo.Open(dsn, repo.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		return fmt.Errorf("open store %s: %w", sysutil.RedactDSN(dsn), err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("store", sysutil.RedactDSN(dsn)).Bool("postgres", cfg.UsesPostgres()).Msg("store ready")

	rc, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer rc.Close()

	geoClient := geo.New(geo.Options{
		Token:   cfg.Geo.Token,
		BaseURL: cfg.Geo.BaseURL,
		Timeout: cfg.Geo.Timeout,
	}, rc)
	if !geoClient.Enabled() {
		log.Warn().Msg("GEO_API_TOKEN not set; scans are recorded without location")
	}

	tracker := services.NewTracker(db, repo.ScanWriter{}, geoClient, services.TrackerOptions{
		Workers:    cfg.Tracker.Workers,
		QueueSize:  cfg.Tracker.QueueSize,
		JobTimeout: cfg.Tracker.JobTimeout,
	})
	tracker.Start()

	gin.SetMode(cfg.GinMode)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Cache: rc, Tracker: tracker}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, purgeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			tracker.Stop()
			return fmt.Errorf("listen: %w", err)
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// In-flight redirects may still enqueue scans until Shutdown returns.
	tracker.Stop()
	log.Info().Msg("stopped")
	return nil
}

func openCache(cfg config.CacheConfig) (*cache.Cache, error) {
	opts := cache.Options{OpTimeout: cfg.OpTimeout, RedirectTTL: cfg.RedirectTTL, GeoTTL: cfg.GeoTTL}
	if cfg.RedisURL == "" {
		log.Info().Msg("cache: in-process")
		return cache.New(cache.NewMemory(10*time.Minute), opts), nil
	}
	b, err := cache.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	c := cache.New(b, opts)
	pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		// Unreachable Redis degrades every lookup to the store.
		log.Warn().Err(err).Str("redis", sysutil.RedactDSN(cfg.RedisURL)).Msg("cache: redis unreachable")
	} else {
		log.Info().Str("redis", sysutil.RedactDSN(cfg.RedisURL)).Msg("cache: redis")
	}
	return c, nil
}

// purgeIdempotency deletes expired Idempotency-Key records every interval
// until ctx is done.
func purgeIdempotency(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredIdempotency(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("idempotency records purged")
			}
		}
	}
}

func flush(name string, fn observability.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("flush failed")
	}
}
