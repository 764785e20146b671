// Package services defines the business logic for short links, scan tracking
// and analytics. This file centralizes the service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrNotFound indicates that the requested short link does not exist or is
	// not owned by the caller.
	ErrNotFound = errors.New("short link not found")

	// ErrSlugConflict is returned when a slug is already taken by another link.
	ErrSlugConflict = errors.New("slug already exists")

	// ErrInvalidSlug is returned for slugs outside [A-Za-z0-9_-]{3,64}.
	ErrInvalidSlug = errors.New("slug must be 3-64 characters of letters, digits, '-' or '_'")

	// ErrInvalidTarget is returned when the target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("targetUrl must be an absolute http or https URL")

	// ErrInvalidDesign is returned when the design payload is not valid JSON.
	ErrInvalidDesign = errors.New("designPayload must be valid JSON")

	// ErrNoShortLinkIDs is returned when an analytics request names no links.
	ErrNoShortLinkIDs = errors.New("shortLinkIds must be a non-empty array")

	// ErrSlugExhausted is returned when slug generation keeps colliding.
	ErrSlugExhausted = errors.New("could not allocate a unique slug")
)
