// Package services – ShortLinkService
//
// This file implements ShortLinkService, which owns the lifecycle of short
// links and the slug → target resolution used by the public redirect.
//
// The redirect cache is treated as pure acceleration. Resolution always reads
// the store (the tracking flag and link id live there), and whenever cache and
// store disagree the store wins and the cache entry is repaired or evicted.
// Slug uniqueness is checked twice before inserting: once against the cache
// (cheap rejection) and once against the store; the store's unique index
// remains the final arbiter for concurrent creators.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	retry "github.com/avast/retry-go"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-qrlink-backend/internal/cache"
	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/repo"
	"github.com/tbourn/go-qrlink-backend/internal/utils"
)

// ShortLinkRepo defines the repository contract required by ShortLinkService.
type ShortLinkRepo interface {
	// CreateShortLink inserts l; a slug collision yields repo.ErrDuplicate.
	CreateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error

	// GetShortLinkBySlug fetches the link for slug regardless of owner.
	GetShortLinkBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ShortLink, error)

	// SlugExists reports whether a link other than excludeID uses slug.
	SlugExists(ctx context.Context, db *gorm.DB, slug, excludeID string) (bool, error)

	// GetShortLink fetches a link by id scoped to its owner.
	GetShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.ShortLink, error)

	// CountShortLinks returns the number of links owned by ownerID.
	CountShortLinks(ctx context.Context, db *gorm.DB, ownerID string) (int64, error)

	// ListShortLinksPage returns a page of links owned by ownerID.
	ListShortLinksPage(ctx context.Context, db *gorm.DB, ownerID string, offset, limit int) ([]domain.ShortLink, error)

	// UpdateShortLink persists the mutable columns of l.
	UpdateShortLink(ctx context.Context, db *gorm.DB, l *domain.ShortLink) error

	// DeleteShortLink hard-deletes the owned link.
	DeleteShortLink(ctx context.Context, db *gorm.DB, id, ownerID string) error
}

// RedirectCache is the slice of the cache layer the resolver depends on.
// *cache.Cache satisfies it.
type RedirectCache interface {
	GetRedirect(ctx context.Context, slug string) (cache.RedirectEntry, bool)
	SetRedirect(ctx context.Context, slug, target string)
	MarkTaken(ctx context.Context, slug string)
	DeleteRedirect(ctx context.Context, slug string)
	SlugTaken(ctx context.Context, slug string) bool
}

// Resolution is the outcome of a successful Resolve.
type Resolution struct {
	Target string
	Link   *domain.ShortLink
	// CacheHit is true when the cached target matched the store.
	CacheHit bool
}

// CreateInput carries the fields of a new link. An empty Slug asks the service
// to generate one.
type CreateInput struct {
	Slug            string
	TargetURL       string
	DesignPayload   string
	TrackingEnabled bool
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Slug            *string
	TargetURL       *string
	DesignPayload   *string
	TrackingEnabled *bool
}

const (
	slugAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	generatedSlugLen  = 7
	defaultSlugTries  = 5
	defaultRetryDelay = 50 * time.Millisecond
)

var slugRE = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)

// ShortLinkService provides short-link CRUD and slug resolution.
type ShortLinkService struct {
	DB    *gorm.DB
	Repo  ShortLinkRepo
	Cache RedirectCache

	// Reserved slugs collide with top-level routes and are never handed out.
	Reserved map[string]struct{}

	// SlugAttempts bounds generated-slug retries; RetryDelay spaces them.
	SlugAttempts int
	RetryDelay   time.Duration
}

// NewShortLinkService constructs a ShortLinkService with default retry policy.
// reserved lists path segments that must never be used as slugs.
func NewShortLinkService(db *gorm.DB, r ShortLinkRepo, c RedirectCache, reserved ...string) *ShortLinkService {
	res := make(map[string]struct{}, len(reserved))
	for _, s := range reserved {
		if s = strings.Trim(strings.TrimSpace(s), "/"); s != "" {
			res[strings.ToLower(s)] = struct{}{}
		}
	}
	return &ShortLinkService{
		DB:           db,
		Repo:         r,
		Cache:        c,
		Reserved:     res,
		SlugAttempts: defaultSlugTries,
		RetryDelay:   defaultRetryDelay,
	}
}

// Resolve maps slug to its target. It returns ErrNotFound when no link exists;
// other errors are store failures.
func (s *ShortLinkService) Resolve(ctx context.Context, slug string) (*Resolution, error) {
	ctx, span := otel.Tracer("services/ShortLinkService").Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("link.slug", slug)),
	)
	defer span.End()

	entry, hit := s.Cache.GetRedirect(ctx, slug)
	if hit && entry.Taken {
		// A taken marker is never a target; drop it and let the store decide.
		log.Warn().Str("slug", slug).Msg("evicting non-target redirect entry")
		s.Cache.DeleteRedirect(ctx, slug)
		hit = false
	}

	link, err := s.Repo.GetShortLinkBySlug(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			if hit {
				s.Cache.DeleteRedirect(ctx, slug)
			}
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, err
	}

	consistent := hit && entry.Target == link.TargetURL
	if !consistent {
		if hit {
			log.Warn().Str("slug", slug).Msg("redirect cache diverged from store; repairing")
		}
		s.Cache.SetRedirect(ctx, slug, link.TargetURL)
	}
	span.SetAttributes(attribute.Bool("cache.hit", consistent))

	return &Resolution{Target: link.TargetURL, Link: link, CacheHit: consistent}, nil
}

// Create inserts a link owned by ownerID. An explicit slug goes through the
// cache and store pre-checks; a missing slug is generated and retried on
// collision.
func (s *ShortLinkService) Create(ctx context.Context, ownerID string, in CreateInput) (*domain.ShortLink, error) {
	ctx, span := otel.Tracer("services/ShortLinkService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("link.slug", in.Slug),
		),
	)
	defer span.End()

	target, err := normalizeTarget(in.TargetURL)
	if err != nil {
		return nil, err
	}
	design, err := normalizeDesign(in.DesignPayload)
	if err != nil {
		return nil, err
	}

	link := &domain.ShortLink{
		TargetURL:       target,
		TrackingEnabled: in.TrackingEnabled,
		DesignPayload:   design,
		OwnerID:         ownerID,
	}

	slug := strings.TrimSpace(in.Slug)
	if slug == "" {
		if err := s.createGenerated(ctx, link); err != nil {
			return nil, err
		}
		s.Cache.SetRedirect(ctx, link.Slug, link.TargetURL)
		return link, nil
	}

	if err := s.validateSlug(slug); err != nil {
		return nil, err
	}
	if err := s.ensureAvailable(ctx, slug, ""); err != nil {
		return nil, err
	}

	link.Slug = slug
	if err := s.Repo.CreateShortLink(ctx, s.DB, link); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			s.Cache.MarkTaken(ctx, slug)
			return nil, ErrSlugConflict
		}
		span.RecordError(err)
		return nil, err
	}
	s.Cache.SetRedirect(ctx, slug, link.TargetURL)
	return link, nil
}

// Get returns the link id owned by ownerID.
func (s *ShortLinkService) Get(ctx context.Context, ownerID, id string) (*domain.ShortLink, error) {
	l, err := s.Repo.GetShortLink(ctx, s.DB, id, ownerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// ListPage returns a page of links for ownerID plus the total count.
func (s *ShortLinkService) ListPage(ctx context.Context, ownerID string, page, pageSize int) ([]domain.ShortLink, int64, error) {
	ctx, span := otel.Tracer("services/ShortLinkService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = utils.ClampPage(page, pageSize, 20, 0)
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountShortLinks(ctx, s.DB, ownerID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ShortLink{}, 0, nil
	}

	items, err := s.Repo.ListShortLinksPage(ctx, s.DB, ownerID, offset, pageSize)
	return items, total, err
}

// Update applies in to the link id owned by ownerID. A slug change re-runs
// the uniqueness checks, then evicts the old redirect entry and writes the new
// one.
func (s *ShortLinkService) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*domain.ShortLink, error) {
	ctx, span := otel.Tracer("services/ShortLinkService").Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("link.id", id),
		),
	)
	defer span.End()

	link, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	oldSlug, oldTarget := link.Slug, link.TargetURL

	if in.TargetURL != nil {
		t, err := normalizeTarget(*in.TargetURL)
		if err != nil {
			return nil, err
		}
		link.TargetURL = t
	}
	if in.DesignPayload != nil {
		d, err := normalizeDesign(*in.DesignPayload)
		if err != nil {
			return nil, err
		}
		link.DesignPayload = d
	}
	if in.TrackingEnabled != nil {
		link.TrackingEnabled = *in.TrackingEnabled
	}

	slugChanged := false
	if in.Slug != nil {
		slug := strings.TrimSpace(*in.Slug)
		if slug != oldSlug {
			if err := s.validateSlug(slug); err != nil {
				return nil, err
			}
			if err := s.ensureAvailable(ctx, slug, link.ID); err != nil {
				return nil, err
			}
			link.Slug = slug
			slugChanged = true
		}
	}

	if err := s.Repo.UpdateShortLink(ctx, s.DB, link); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repo.ErrDuplicate):
			s.Cache.MarkTaken(ctx, link.Slug)
			return nil, ErrSlugConflict
		}
		span.RecordError(err)
		return nil, err
	}

	switch {
	case slugChanged:
		s.Cache.DeleteRedirect(ctx, oldSlug)
		s.Cache.SetRedirect(ctx, link.Slug, link.TargetURL)
	case link.TargetURL != oldTarget:
		s.Cache.SetRedirect(ctx, link.Slug, link.TargetURL)
	}
	return link, nil
}

// Delete removes the link id owned by ownerID and then evicts its redirect.
func (s *ShortLinkService) Delete(ctx context.Context, ownerID, id string) error {
	ctx, span := otel.Tracer("services/ShortLinkService").Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("owner.id", ownerID),
			attribute.String("link.id", id),
		),
	)
	defer span.End()

	link, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteShortLink(ctx, s.DB, id, ownerID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.Cache.DeleteRedirect(ctx, link.Slug)
	return nil
}

// ensureAvailable is the two-phase uniqueness pre-check. A store hit that the
// cache had not seen is recorded as a taken marker.
func (s *ShortLinkService) ensureAvailable(ctx context.Context, slug, excludeID string) error {
	if s.Cache.SlugTaken(ctx, slug) {
		return ErrSlugConflict
	}
	exists, err := s.Repo.SlugExists(ctx, s.DB, slug, excludeID)
	if err != nil {
		return err
	}
	if exists {
		s.Cache.MarkTaken(ctx, slug)
		return ErrSlugConflict
	}
	return nil
}

var errGeneratedCollision = errors.New("generated slug collided")

// createGenerated inserts link under freshly generated slugs until one sticks.
func (s *ShortLinkService) createGenerated(ctx context.Context, link *domain.ShortLink) error {
	attempts := s.SlugAttempts
	if attempts <= 0 {
		attempts = defaultSlugTries
	}

	var lastErr error
	err := retry.Do(
		func() error {
			slug, err := gonanoid.Generate(slugAlphabet, generatedSlugLen)
			if err != nil {
				lastErr = err
				return retry.Unrecoverable(err)
			}
			if s.Cache.SlugTaken(ctx, slug) {
				lastErr = errGeneratedCollision
				return lastErr
			}
			link.Slug = slug
			if err := s.Repo.CreateShortLink(ctx, s.DB, link); err != nil {
				lastErr = err
				if errors.Is(err, repo.ErrDuplicate) {
					s.Cache.MarkTaken(ctx, slug)
					return err
				}
				return retry.Unrecoverable(err)
			}
			lastErr = nil
			return nil
		},
		retry.Attempts(uint(attempts)),
		retry.Delay(s.RetryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Uint("attempt", n+1).Err(err).Msg("retrying generated slug insert")
		}),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil || lastErr == nil {
		return err
	}
	if errors.Is(lastErr, repo.ErrDuplicate) || errors.Is(lastErr, errGeneratedCollision) {
		return ErrSlugExhausted
	}
	return lastErr
}

func (s *ShortLinkService) validateSlug(slug string) error {
	if !slugRE.MatchString(slug) {
		return ErrInvalidSlug
	}
	if _, ok := s.Reserved[strings.ToLower(slug)]; ok {
		return ErrSlugConflict
	}
	return nil
}

// normalizeTarget trims raw and requires an absolute http(s) URL with a host.
func normalizeTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidTarget
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidTarget
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw, nil
	default:
		return "", ErrInvalidTarget
	}
}

// normalizeDesign accepts an empty payload or any valid JSON document.
func normalizeDesign(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if !json.Valid([]byte(raw)) {
		return "", ErrInvalidDesign
	}
	return raw, nil
}
