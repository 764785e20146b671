// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ShortLink
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a link is not found (or not owned by the caller), functions return
//     ErrNotFound.
//   - Unique slug violations surface as ErrDuplicate regardless of driver.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateShortLink inserts l, assigning an ID and UTC timestamps when unset.
// A slug collision on the unique index yields ErrDuplicate.
func CreateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error {
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetShortLinkBySlug fetches the link published under slug, regardless of owner.
func GetShortLinkBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ShortLink, error) {
	var l domain.ShortLink
	err := db.WithContext(ctx).Where("slug = ?", slug).First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// SlugExists reports whether any link other than excludeID uses slug.
// Pass an empty excludeID to check across all links.
func SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.ShortLink{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetShortLink fetches a link by ID scoped to its owner.
func GetShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.ShortLink, error) {
	var l domain.ShortLink
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&l).Error
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// CountShortLinks returns the total number of links owned by ownerID.
func CountShortLinks(ctx context.Context, db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ShortLink{}).
		Where("owner_id = ?", ownerID).
		Count(&total).Error
	return total, err
}

// ListShortLinksPage returns a page of links for ownerID, newest first.
func ListShortLinksPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.ShortLink, error) {
	var out []domain.ShortLink
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateShortLink persists the mutable columns of l (slug, target, tracking,
// design) for the row matching l.ID and l.OwnerID. It returns ErrNotFound when
// no owned row matched and ErrDuplicate when the new slug is taken.
func UpdateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error {
	l.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.ShortLink{}).
		Where("id = ? AND owner_id = ?", l.ID, l.OwnerID).
		Updates(map[string]any{
			"slug":             l.Slug,
			"target_url":       l.TargetURL,
			"tracking_enabled": l.TrackingEnabled,
			"design_payload":   l.DesignPayload,
			"updated_at":       l.UpdatedAt,
		})
	if res.Error != nil {
		if IsDuplicate(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteShortLink hard-deletes the link identified by id and owned by ownerID.
// Scan events are left untouched.
func DeleteShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.ShortLink{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// OwnedShortLinkIDs filters ids down to those owned by ownerID.
func OwnedShortLinkIDs(ctx context.Context, db *gorm.DB, ownerID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.ShortLink{}).
		Where("owner_id = ? AND id IN ?", ownerID, ids).
		Pluck("id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
