package cache

import (
	"context"
	"strings"
)

// Redirect entries are tagged so a real target can never be confused with the
// "slug is taken" marker written by the uniqueness pre-check.
const (
	redirectURLTag = "url:"
	takenMarker    = "taken"
	legacyExists   = "exists"
)

// RedirectEntry is a decoded redirect:<slug> value. Exactly one of Target or
// Taken is meaningful: Taken entries only record that the slug exists.
type RedirectEntry struct {
	Target string
	Taken  bool
}

// GetRedirect decodes redirect:<slug>. Untagged values (including the legacy
// "exists" marker) decode as Taken so they are never served as a target.
func (c *Cache) GetRedirect(ctx context.Context, slug string) (RedirectEntry, bool) {
	v, ok := c.Get(ctx, NamespaceRedirect, slug)
	if !ok {
		return RedirectEntry{}, false
	}
	return decodeRedirect(v), true
}

// SetRedirect stores the real target for slug with the redirect TTL.
func (c *Cache) SetRedirect(ctx context.Context, slug, target string) {
	c.SetWithTTL(ctx, NamespaceRedirect, slug, redirectURLTag+target, c.redirectTTL)
}

// MarkTaken records that slug exists without claiming a target.
func (c *Cache) MarkTaken(ctx context.Context, slug string) {
	c.SetWithTTL(ctx, NamespaceRedirect, slug, takenMarker, c.redirectTTL)
}

// DeleteRedirect evicts any entry for slug.
func (c *Cache) DeleteRedirect(ctx context.Context, slug string) {
	c.Delete(ctx, NamespaceRedirect, slug)
}

// SlugTaken is the advisory existence check used before creating a link.
func (c *Cache) SlugTaken(ctx context.Context, slug string) bool {
	return c.Exists(ctx, NamespaceRedirect, slug)
}

func decodeRedirect(v string) RedirectEntry {
	if target, ok := strings.CutPrefix(v, redirectURLTag); ok && target != "" {
		return RedirectEntry{Target: target}
	}
	switch v {
	case takenMarker, legacyExists:
		return RedirectEntry{Taken: true}
	default:
		// Unrecognized values are never trusted as targets.
		return RedirectEntry{Taken: true}
	}
}
