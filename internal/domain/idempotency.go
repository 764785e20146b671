// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (owner_id, scope, key). Scope is the route template the key was
// presented to, so the same key may be reused across different endpoints.
// ResourceID points at the entity the original request produced.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	OwnerID    string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_owner_scope_key,priority:1"`
	Scope      string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_owner_scope_key,priority:2"`
	Key        string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_owner_scope_key,priority:3"`
	ResourceID string    `gorm:"type:varchar(36);not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
