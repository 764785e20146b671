package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-qrlink-backend/internal/cache"
	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&domain.ShortLink{}, &domain.ScanEvent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newMemCache() *cache.Cache {
	return cache.New(cache.NewMemory(time.Minute), cache.Options{})
}

// sqlRepo routes every repository contract to the real repo functions.
type sqlRepo struct{}

func (sqlRepo) CreateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error {
	return repo.CreateShortLink(ctx, db, l)
}
func (sqlRepo) GetShortLinkBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ShortLink, error) {
	return repo.GetShortLinkBySlug(ctx, db, slug)
}
func (sqlRepo) SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error) {
	return repo.SlugExists(ctx, db, slug, excludeID)
}
func (sqlRepo) GetShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.ShortLink, error) {
	return repo.GetShortLink(ctx, db, id, ownerID)
}
func (sqlRepo) CountShortLinks(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	return repo.CountShortLinks(ctx, db, ownerID)
}
func (sqlRepo) ListShortLinksPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.ShortLink, error) {
	return repo.ListShortLinksPage(ctx, db, ownerID, offset, limit)
}
func (sqlRepo) UpdateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error {
	return repo.UpdateShortLink(ctx, db, l)
}
func (sqlRepo) DeleteShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	return repo.DeleteShortLink(ctx, db, id, ownerID)
}
func (sqlRepo) CreateScanEvent(ctx context.Context, db *gorm.DB, ev *domain.ScanEvent) error {
	return repo.CreateScanEvent(ctx, db, ev)
}
func (sqlRepo) OwnedShortLinkIDs(ctx context.Context, db *gorm.DB, ownerID string, ids []string) ([]string, error) {
	return repo.OwnedShortLinkIDs(ctx, db, ownerID, ids)
}
func (sqlRepo) CountScans(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	return repo.CountScans(ctx, db, ids)
}
func (sqlRepo) UserAgentCounts(ctx context.Context, db *gorm.DB, ids []string) ([]repo.UserAgentCount, error) {
	return repo.UserAgentCounts(ctx, db, ids)
}
func (sqlRepo) CountryCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error) {
	return repo.CountryCounts(ctx, db, ids, limit)
}
func (sqlRepo) RegionCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error) {
	return repo.RegionCounts(ctx, db, ids, limit)
}
func (sqlRepo) CityCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]repo.LocationCount, error) {
	return repo.CityCounts(ctx, db, ids, limit)
}

func countScans(t *testing.T, db *gorm.DB, linkID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.ScanEvent{}).Where("short_link_id = ?", linkID).Count(&n).Error; err != nil {
		t.Fatalf("count scans: %v", err)
	}
	return n
}
