// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy next to the human-readable "error" message:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "conflict",
//	  "error": "Slug already exists"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeValidation    = "validation_failed"
	ErrCodeSlugExhausted = "slug_exhausted"
)

// User-facing messages with a fixed wording.
const (
	MsgLinkNotFound     = "QR code not found"
	MsgSlugConflict     = "Slug already exists"
	MsgInternal         = "Internal server error"
	MsgRouteNotFound    = "route not found"
	MsgInvalidJSON      = "invalid JSON body"
	MsgUnavailable      = "service unavailable"
	MsgMethodNotAllowed = "method not allowed"
)
