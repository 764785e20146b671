// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides persistence and aggregate queries for
// ScanEvent rows: single inserts from the scan recorder, and the grouped
// counts consumed by the analytics aggregator.
//
// Aggregates are always scoped to an explicit list of short link IDs; callers
// are responsible for authorizing that list first. Missing location columns
// are reported under the UnknownLocation label so that NULLs group together.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
)

// UnknownLocation labels scans whose geolocation was unavailable.
const UnknownLocation = "Unknown"

// UserAgentCount is the number of scans sharing one raw User-Agent string.
type UserAgentCount struct {
	UserAgent string
	Scans     int64
}

// LocationCount is one row of a location rollup. Fields that are not part of
// the grouping are left empty (e.g. City for the per-country rollup).
type LocationCount struct {
	Country string
	Region  string
	City    string
	Scans   int64
}

// CreateScanEvent inserts one immutable scan record, assigning ID and
// ObservedAt when unset.
func CreateScanEvent(ctx context.Context, db *gorm.DB, ev *domain.ScanEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ObservedAt.IsZero() {
		ev.ObservedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(ev).Error
}

// ScanWriter exposes CreateScanEvent as a method for the scan recorder.
type ScanWriter struct{}

// CreateScanEvent proxies the package-level CreateScanEvent.
func (ScanWriter) CreateScanEvent(ctx context.Context, db *gorm.DB, ev *domain.ScanEvent) error {
	return CreateScanEvent(ctx, db, ev)
}

// CountScans returns the number of scan events across ids.
func CountScans(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	var n int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := scansFor(ctx, db, ids).Count(&n).Error
	return n, err
}

// UserAgentCounts groups scans across ids by their raw User-Agent.
func UserAgentCounts(ctx context.Context, db *gorm.DB, ids []string) ([]UserAgentCount, error) {
	out := []UserAgentCount{}
	if len(ids) == 0 {
		return out, nil
	}
	err := scansFor(ctx, db, ids).
		Select("COALESCE(user_agent, '') AS user_agent, COUNT(*) AS scans").
		Group("COALESCE(user_agent, '')").
		Scan(&out).Error
	return out, err
}

// CountryCounts groups scans by country, most scanned first, capped at limit.
func CountryCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]LocationCount, error) {
	return locationCounts(ctx, db, ids, limit, "country")
}

// RegionCounts groups scans by (region, country), capped at limit.
func RegionCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]LocationCount, error) {
	return locationCounts(ctx, db, ids, limit, "region", "country")
}

// CityCounts groups scans by (city, region, country), capped at limit.
func CityCounts(ctx context.Context, db *gorm.DB, ids []string, limit int) ([]LocationCount, error) {
	return locationCounts(ctx, db, ids, limit, "city", "region", "country")
}

// locationCounts builds a GROUP BY over the given location columns with NULLs
// folded into UnknownLocation. Ties are broken by the grouped labels so that
// results are stable across drivers.
func locationCounts(ctx context.Context, db *gorm.DB, ids []string, limit int, cols ...string) ([]LocationCount, error) {
	out := []LocationCount{}
	if len(ids) == 0 {
		return out, nil
	}

	q := scansFor(ctx, db, ids)
	sel := ""
	for _, col := range cols {
		expr := "COALESCE(" + col + ", '" + UnknownLocation + "')"
		sel += expr + " AS " + col + ", "
		q = q.Group(expr)
	}
	q = q.Select(sel + "COUNT(*) AS scans").Order("scans DESC")
	for _, col := range cols {
		q = q.Order(col)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(&out).Error
	return out, err
}

func scansFor(ctx context.Context, db *gorm.DB, ids []string) *gorm.DB {
	return db.WithContext(ctx).
		Model(&domain.ScanEvent{}).
		Where("short_link_id IN ?", ids)
}
