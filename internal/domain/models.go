// Package domain defines the persistence models for short links and the scan
// events recorded when their QR codes are resolved. These types are mapped
// with GORM and form the core data layer of the redirect service.
package domain

import "time"

// ShortLink maps a public slug to a target URL on behalf of an owner.
//
// Fields:
//   - ID: stable UUID primary key.
//   - Slug: public path segment; globally unique (enforced by ux_short_links_slug).
//   - TargetURL: absolute http(s) URL the slug redirects to.
//   - TrackingEnabled: when true every resolution records a ScanEvent.
//   - DesignPayload: opaque JSON document describing the QR styling.
//   - OwnerID: identity of the creator; indexed for per-owner listings.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// Rows are hard-deleted so a released slug can be claimed again.
type ShortLink struct {
	ID              string    `json:"id"              gorm:"type:varchar(36);primaryKey"`
	Slug            string    `json:"slug"            gorm:"type:varchar(64);not null;uniqueIndex:ux_short_links_slug"`
	TargetURL       string    `json:"targetUrl"       gorm:"type:text;not null"`
	TrackingEnabled bool      `json:"trackingEnabled" gorm:"not null"`
	DesignPayload   string    `json:"-"               gorm:"type:text"`
	OwnerID         string    `json:"ownerId"         gorm:"type:varchar(128);not null;index:idx_short_links_owner,priority:1"`
	CreatedAt       time.Time `json:"createdAt"       gorm:"index:idx_short_links_owner,priority:2"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName returns the database table name for ShortLink.
func (ShortLink) TableName() string { return "short_links" }

// ScanEvent is one tracked resolution of a ShortLink. Location fields are nil
// when geolocation was unavailable for the client address.
//
// Scan events are immutable and never cascade-deleted with their link;
// retention is handled outside the service.
type ScanEvent struct {
	ID          string    `json:"id"            gorm:"type:varchar(36);primaryKey"`
	ShortLinkID string    `json:"shortLinkId"   gorm:"type:varchar(36);not null;index:idx_scan_events_link"`
	ClientIP    string    `json:"clientIp"      gorm:"type:varchar(64);not null"`
	City        *string   `json:"city,omitempty"    gorm:"type:varchar(128)"`
	Region      *string   `json:"region,omitempty"  gorm:"type:varchar(128)"`
	Country     *string   `json:"country,omitempty" gorm:"type:varchar(64)"`
	UserAgent   string    `json:"userAgent"     gorm:"type:text"`
	ObservedAt  time.Time `json:"observedAt"    gorm:"not null;index"`
}

// TableName returns the database table name for ScanEvent.
func (ScanEvent) TableName() string { return "scan_events" }
