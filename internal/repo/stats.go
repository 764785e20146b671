// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
)

// ShortLinksStats returns aggregate metadata for an owner's links: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// It executes two lightweight queries against the short_links table scoped to
// ownerID. When the owner has no links, the returned count is 0 and
// maxUpdatedAt is nil.
func ShortLinksStats(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ShortLink{}).Where("owner_id = ?", ownerID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	q = db.WithContext(ctx).Model(&domain.ShortLink{}).Where("owner_id = ?", ownerID)
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
