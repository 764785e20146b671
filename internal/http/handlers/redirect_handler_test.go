package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/services"
)

func resolverFor(links map[string]*domain.ShortLink) stubLinks {
	return stubLinks{resolve: func(_ context.Context, slug string) (*services.Resolution, error) {
		if l, ok := links[slug]; ok {
			return &services.Resolution{Target: l.TargetURL, Link: l}, nil
		}
		return nil, services.ErrNotFound
	}}
}

func TestRedirect_FoundAndTracked(t *testing.T) {
	tr := &recordingTracker{}
	links := resolverFor(map[string]*domain.ShortLink{
		"promo1": {ID: "l1", Slug: "promo1", TargetURL: "https://example.com/landing", TrackingEnabled: true},
	})
	r := newTestRouter(New(links, nil, tr, Options{}), nil)

	req := httptest.NewRequest(http.MethodGet, "/promo1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status=%d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com/landing" {
		t.Fatalf("Location=%q", loc)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "private, no-store" {
		t.Fatalf("Cache-Control=%q", cc)
	}
	scans := tr.all()
	if len(scans) != 1 {
		t.Fatalf("scans=%d", len(scans))
	}
	s := scans[0]
	if s.ShortLinkID != "l1" || s.ClientIP != "203.0.113.7" || s.UserAgent == "" || s.ObservedAt.IsZero() {
		t.Fatalf("unexpected scan: %+v", s)
	}
}

func TestRedirect_TrackingDisabled(t *testing.T) {
	tr := &recordingTracker{}
	links := resolverFor(map[string]*domain.ShortLink{
		"quiet": {ID: "l2", Slug: "quiet", TargetURL: "https://example.com", TrackingEnabled: false},
	})
	r := newTestRouter(New(links, nil, tr, Options{}), nil)

	w := doJSON(t, r, http.MethodGet, "/quiet", "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("status=%d", w.Code)
	}
	if n := len(tr.all()); n != 0 {
		t.Fatalf("tracked %d scans for disabled link", n)
	}
}

func TestRedirect_HeadNotTracked(t *testing.T) {
	tr := &recordingTracker{}
	links := resolverFor(map[string]*domain.ShortLink{
		"promo1": {ID: "l1", Slug: "promo1", TargetURL: "https://example.com", TrackingEnabled: true},
	})
	r := newTestRouter(New(links, nil, tr, Options{}), nil)

	w := doJSON(t, r, http.MethodHead, "/promo1", "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("status=%d", w.Code)
	}
	if n := len(tr.all()); n != 0 {
		t.Fatalf("HEAD recorded %d scans", n)
	}
}

func TestRedirect_NilTrackerStillRedirects(t *testing.T) {
	links := resolverFor(map[string]*domain.ShortLink{
		"promo1": {ID: "l1", Slug: "promo1", TargetURL: "https://example.com", TrackingEnabled: true},
	})
	r := newTestRouter(New(links, nil, nil, Options{}), nil)
	if w := doJSON(t, r, http.MethodGet, "/promo1", "", nil); w.Code != http.StatusFound {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestRedirect_NotFound(t *testing.T) {
	tr := &recordingTracker{}
	r := newTestRouter(New(resolverFor(nil), nil, tr, Options{}), nil)

	w := doJSON(t, r, http.MethodGet, "/missing", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	er := decodeError(t, w)
	if er.Error != "QR code not found" || er.Code != ErrCodeNotFound {
		t.Fatalf("unexpected: %+v", er)
	}
	if er.RequestID == "" {
		t.Fatalf("request_id missing")
	}
	if len(tr.all()) != 0 {
		t.Fatalf("not-found must not be tracked")
	}
}

func TestRedirect_InternalError(t *testing.T) {
	links := stubLinks{resolve: func(context.Context, string) (*services.Resolution, error) {
		return nil, errors.New("connection reset")
	}}
	r := newTestRouter(New(links, nil, nil, Options{}), nil)

	w := doJSON(t, r, http.MethodGet, "/promo1", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Error != "Internal server error" {
		t.Fatalf("unexpected: %+v", er)
	}
}
