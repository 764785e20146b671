package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/http/middleware"
	"github.com/tbourn/go-qrlink-backend/internal/services"
)

// ---------- test DB ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&domain.ShortLink{}, &domain.ScanEvent{}, &domain.Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// ---------- service stubs ----------

type stubLinks struct {
	resolve  func(context.Context, string) (*services.Resolution, error)
	create   func(context.Context, string, services.CreateInput) (*domain.ShortLink, error)
	get      func(context.Context, string, string) (*domain.ShortLink, error)
	listPage func(context.Context, string, int, int) ([]domain.ShortLink, int64, error)
	update   func(context.Context, string, string, services.UpdateInput) (*domain.ShortLink, error)
	del      func(context.Context, string, string) error
}

func (s stubLinks) Resolve(ctx context.Context, slug string) (*services.Resolution, error) {
	if s.resolve != nil {
		return s.resolve(ctx, slug)
	}
	return nil, services.ErrNotFound
}

func (s stubLinks) Create(ctx context.Context, owner string, in services.CreateInput) (*domain.ShortLink, error) {
	if s.create != nil {
		return s.create(ctx, owner, in)
	}
	return &domain.ShortLink{ID: "l1", Slug: in.Slug, TargetURL: in.TargetURL, OwnerID: owner}, nil
}

func (s stubLinks) Get(ctx context.Context, owner, id string) (*domain.ShortLink, error) {
	if s.get != nil {
		return s.get(ctx, owner, id)
	}
	return nil, services.ErrNotFound
}

func (s stubLinks) ListPage(ctx context.Context, owner string, page, size int) ([]domain.ShortLink, int64, error) {
	if s.listPage != nil {
		return s.listPage(ctx, owner, page, size)
	}
	return []domain.ShortLink{}, 0, nil
}

func (s stubLinks) Update(ctx context.Context, owner, id string, in services.UpdateInput) (*domain.ShortLink, error) {
	if s.update != nil {
		return s.update(ctx, owner, id, in)
	}
	return nil, services.ErrNotFound
}

func (s stubLinks) Delete(ctx context.Context, owner, id string) error {
	if s.del != nil {
		return s.del(ctx, owner, id)
	}
	return services.ErrNotFound
}

type stubAnalytics struct {
	aggregate func(context.Context, string, []string) (*services.AnalyticsReport, error)
}

func (s stubAnalytics) Aggregate(ctx context.Context, owner string, ids []string) (*services.AnalyticsReport, error) {
	return s.aggregate(ctx, owner, ids)
}

// recordingTracker remembers every accepted scan.
type recordingTracker struct {
	mu    sync.Mutex
	scans []services.ScanInput
}

func (r *recordingTracker) Track(in services.ScanInput) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = append(r.scans, in)
	return true
}

func (r *recordingTracker) all() []services.ScanInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]services.ScanInput(nil), r.scans...)
}

// ---------- router + request helpers ----------

// newTestRouter mounts h the way the production router does, with the owner
// taken from X-User-ID.
func newTestRouter(h *Handlers, lookup middleware.IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Identify(middleware.AuthOptions{AllowUserHeader: true}))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup))

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/:slug", h.Redirect)
	r.HEAD("/:slug", h.Redirect)

	api := r.Group("/api/v1", middleware.RequireOwner())
	api.POST("/links", h.CreateLink)
	api.GET("/links", h.ListLinks)
	api.GET("/links/:id", h.GetLink)
	api.PUT("/links/:id", h.UpdateLink)
	api.DELETE("/links/:id", h.DeleteLink)
	api.POST("/analytics", h.Analytics)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, owner string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if owner != "" {
		req.Header.Set(middleware.HeaderUserID, owner)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("error body is not JSON: %v (%s)", err, w.Body.String())
	}
	return er
}
