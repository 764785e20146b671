package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
)

const linksScope = "/api/v1/links"

func TestGetIdempotency_BlankScopeOrKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	if rec, err := GetIdempotency(context.Background(), db, "u1", "   ", "k1", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for blank scope, got (%v, %v)", rec, err)
	}
	if rec, err := GetIdempotency(context.Background(), db, "u1", linksScope, "", now); rec != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID: "expired", OwnerID: "u1", Scope: linksScope, Key: "k1",
		ResourceID: "l1", Status: 201, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := GetIdempotency(context.Background(), db, "u1", linksScope, "k1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
	if _, err := GetIdempotency(context.Background(), db, "u1", linksScope, "missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing record, got %v", err)
	}
}

func TestCreateIdempotency_ThenGet_ThenDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", linksScope, "k1", "l1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ResourceID != "l1" || !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", linksScope, "k1", time.Now().UTC())
	if err != nil || got.ResourceID != "l1" || got.Status != 201 {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}

	// Another owner may reuse the same key.
	if _, err := CreateIdempotency(ctx, db, "u2", linksScope, "k1", "l9", 201, time.Hour); err != nil {
		t.Fatalf("other owner: %v", err)
	}

	if _, err := CreateIdempotency(ctx, db, "u1", linksScope, "k1", "l2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateIdempotency_NoTable_Error(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	_, err := CreateIdempotency(context.Background(), db, "u1", linksScope, "k1", "l1", 201, time.Hour)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "u1", linksScope, "live", "l1", 201, time.Hour); err != nil {
		t.Fatalf("seed live: %v", err)
	}
	old := &domain.Idempotency{
		ID: "old", OwnerID: "u1", Scope: linksScope, Key: "old",
		ResourceID: "l2", Status: 201, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("seed old: %v", err)
	}

	n, err := PurgeExpiredIdempotency(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v", n, err)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 1 {
		t.Fatalf("expected 1 remaining record, got %d", left)
	}
}
