// Package handlers exposes the HTTP endpoints of the QR link service:
//
//   - GET|HEAD /{slug}              public redirect (302)
//   - /links CRUD                   owner API (JSON)
//   - POST /analytics               owner scan rollups
//   - GET /health, GET /ready       probes
//
// Handlers are transport-thin: they bind and validate input, call the
// application services and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/http/middleware"
	"github.com/tbourn/go-qrlink-backend/internal/services"
	"github.com/tbourn/go-qrlink-backend/internal/utils"
)

// ShortLinkService is the link lifecycle consumed by the handlers.
type ShortLinkService interface {
	Resolve(ctx context.Context, slug string) (*services.Resolution, error)
	Create(ctx context.Context, ownerID string, in services.CreateInput) (*domain.ShortLink, error)
	Get(ctx context.Context, ownerID, id string) (*domain.ShortLink, error)
	ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.ShortLink, int64, error)
	Update(ctx context.Context, ownerID, id string, in services.UpdateInput) (*domain.ShortLink, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// AnalyticsService aggregates scans for a set of links.
type AnalyticsService interface {
	Aggregate(ctx context.Context, ownerID string, ids []string) (*services.AnalyticsReport, error)
}

// ScanTracker accepts scans for asynchronous recording. Track must not block.
type ScanTracker interface {
	Track(in services.ScanInput) bool
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options carries the optional collaborators of Handlers.
type Options struct {
	// DB enables list ETags and Idempotency-Key replays. Nil disables both.
	DB *gorm.DB
	// IdempotencyTTL is how long a create can be replayed. Defaults to 24h.
	IdempotencyTTL time.Duration
	// Ready lists named dependencies checked by /ready.
	Ready map[string]Pinger
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	links     ShortLinkService
	analytics AnalyticsService
	tracker   ScanTracker
	db        *gorm.DB
	idemTTL   time.Duration
	ready     map[string]Pinger
}

// New binds the handlers to their services. tracker may be nil, in which case
// scans are not recorded.
func New(links ShortLinkService, analytics AnalyticsService, tracker ScanTracker, opts Options) *Handlers {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	return &Handlers{
		links:     links,
		analytics: analytics,
		tracker:   tracker,
		db:        opts.DB,
		idemTTL:   opts.IdempotencyTTL,
		ready:     opts.Ready,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := utils.TotalPages(total, pageSize)
	return Pagination{Page: page, PageSize: pageSize, Total: total, TotalPages: pages, HasNext: page < pages}
}

// clampPagination reads page and page_size, defaulting to 1 and 20 and
// capping page_size at 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), 20),
		20, 100,
	)
}

// failLink maps ShortLinkService errors to responses.
func failLink(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, MsgLinkNotFound)
	case errors.Is(err, services.ErrSlugConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, MsgSlugConflict)
	case errors.Is(err, services.ErrInvalidSlug),
		errors.Is(err, services.ErrInvalidTarget),
		errors.Is(err, services.ErrInvalidDesign):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrSlugExhausted):
		fail(c, http.StatusServiceUnavailable, ErrCodeSlugExhausted, err.Error(), err)
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, MsgInternal, err)
	}
}

func ownerID(c *gin.Context) string { return middleware.OwnerID(c) }
