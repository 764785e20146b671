// Short link HTTP handlers.
//
// Owner endpoints (mounted under the API base path, owner required):
//   - POST   /links        (create; Idempotency-Key aware)
//   - GET    /links        (list, paginated, weak ETag)
//   - GET    /links/{id}
//   - PUT    /links/{id}   (partial update)
//   - DELETE /links/{id}
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/tbourn/go-qrlink-backend/internal/domain"
	"github.com/tbourn/go-qrlink-backend/internal/http/middleware"
	"github.com/tbourn/go-qrlink-backend/internal/repo"
	"github.com/tbourn/go-qrlink-backend/internal/services"
)

// LinkRequest is the JSON payload for creating or updating a link. On update,
// omitted fields are left unchanged.
type LinkRequest struct {
	// Slug is the public path segment; generated when omitted on create.
	Slug *string `json:"slug,omitempty" example:"promo1"`
	// TargetURL is the absolute http(s) redirect target; required on create.
	TargetURL *string `json:"targetUrl,omitempty" example:"https://example.com/landing"`
	// DesignPayload is an opaque JSON document describing the QR styling.
	DesignPayload json.RawMessage `json:"designPayload,omitempty" swaggertype:"object"`
	// TrackingEnabled records scans; defaults to true on create.
	TrackingEnabled *bool `json:"trackingEnabled,omitempty" example:"true"`
}

// LinkResponse is the JSON representation of a short link.
type LinkResponse struct {
	ID              string          `json:"id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Slug            string          `json:"slug" example:"promo1"`
	TargetURL       string          `json:"targetUrl" example:"https://example.com/landing"`
	TrackingEnabled bool            `json:"trackingEnabled" example:"true"`
	DesignPayload   json.RawMessage `json:"designPayload,omitempty" swaggertype:"object"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ListLinksResponse wraps a page of links and pagination information.
type ListLinksResponse struct {
	Links      []LinkResponse `json:"links"`
	Pagination Pagination     `json:"pagination"`
}

func toLinkResponse(l domain.ShortLink) LinkResponse {
	resp := LinkResponse{
		ID:              l.ID,
		Slug:            l.Slug,
		TargetURL:       l.TargetURL,
		TrackingEnabled: l.TrackingEnabled,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
	if l.DesignPayload != "" {
		resp.DesignPayload = json.RawMessage(l.DesignPayload)
	}
	return resp
}

// designString converts the raw payload to the stored form; JSON null clears it.
func designString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(raw)
}

// CreateLink godoc
// @ID          createLink
// @Summary     Create a short link
// @Description Creates a link owned by the caller. Retrying with the same Idempotency-Key returns the original link with Idempotency-Replayed: true.
// @Tags        Links
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.LinkRequest  true  "Link payload"
// @Success     201  {object}  handlers.LinkResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal server error"
// @Router      /links [post]
func (h *Handlers) CreateLink(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerID(c)
	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	scope := c.FullPath()

	if hasKey && h.db != nil && middleware.IsReplay(c) {
		if rec, err := repo.GetIdempotency(ctx, h.db, owner, scope, idemKey, time.Now().UTC()); err == nil {
			if prev, err := h.links.Get(ctx, owner, rec.ResourceID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, toLinkResponse(*prev))
				return
			}
		}
	}

	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, MsgInvalidJSON)
		return
	}

	link, err := h.links.Create(ctx, owner, services.CreateInput{
		Slug:            lo.FromPtr(req.Slug),
		TargetURL:       lo.FromPtr(req.TargetURL),
		DesignPayload:   designString(req.DesignPayload),
		TrackingEnabled: lo.FromPtrOr(req.TrackingEnabled, true),
	})
	if err != nil {
		failLink(c, err)
		return
	}

	if hasKey && h.db != nil {
		_, err := repo.CreateIdempotency(ctx, h.db, owner, scope, idemKey, link.ID, http.StatusCreated, h.idemTTL)
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			// A concurrent request with the same key won; keep its link.
			if prev, status, found := h.replayWinner(c, owner, scope, idemKey, link.ID); found {
				c.Header("Idempotency-Replayed", "true")
				ok(c, status, toLinkResponse(*prev))
				return
			}
		case err != nil:
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, toLinkResponse(*link))
}

// replayWinner loads the link recorded under an idempotency key that was
// claimed concurrently and deletes the duplicate created by this request.
func (h *Handlers) replayWinner(c *gin.Context, owner, scope, key, createdID string) (*domain.ShortLink, int, bool) {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.db, owner, scope, key, time.Now().UTC())
	if err != nil || rec.ResourceID == createdID {
		return nil, 0, false
	}
	prev, err := h.links.Get(ctx, owner, rec.ResourceID)
	if err != nil {
		return nil, 0, false
	}
	if err := h.links.Delete(ctx, owner, createdID); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("link_id", createdID).Msg("duplicate idempotent create not removed")
	}
	return prev, rec.Status, true
}

// ListLinks godoc
// @ID          listLinks
// @Summary     List short links (paginated)
// @Description Returns a page of the caller's links, newest first. Supports a weak ETag via If-None-Match.
// @Tags        Links
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListLinksResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal server error"
// @Router      /links [get]
func (h *Handlers) ListLinks(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerID(c)
	page, pageSize := clampPagination(c)

	if h.db != nil {
		if count, maxTS, err := repo.ShortLinksStats(ctx, h.db, owner); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"links:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.links.ListPage(ctx, owner, page, pageSize)
	if err != nil {
		failLink(c, err)
		return
	}
	ok(c, http.StatusOK, ListLinksResponse{
		Links:      lo.Map(items, func(l domain.ShortLink, _ int) LinkResponse { return toLinkResponse(l) }),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetLink godoc
// @ID          getLink
// @Summary     Get a short link
// @Tags        Links
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "Link ID"  format(uuid)
// @Success     200  {object}  handlers.LinkResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "QR code not found"
// @Router      /links/{id} [get]
func (h *Handlers) GetLink(c *gin.Context) {
	link, err := h.links.Get(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		failLink(c, err)
		return
	}
	ok(c, http.StatusOK, toLinkResponse(*link))
}

// UpdateLink godoc
// @ID          updateLink
// @Summary     Update a short link
// @Description Applies the supplied fields. Changing the slug moves the cached redirect.
// @Tags        Links
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Link ID"  format(uuid)
// @Param       body  body  handlers.LinkRequest  true  "Fields to change"
// @Success     200  {object}  handlers.LinkResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation error"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "QR code not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already exists"
// @Router      /links/{id} [put]
func (h *Handlers) UpdateLink(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, MsgInvalidJSON)
		return
	}

	in := services.UpdateInput{
		Slug:            req.Slug,
		TargetURL:       req.TargetURL,
		TrackingEnabled: req.TrackingEnabled,
	}
	if len(req.DesignPayload) > 0 {
		in.DesignPayload = lo.ToPtr(designString(req.DesignPayload))
	}

	link, err := h.links.Update(c.Request.Context(), ownerID(c), c.Param("id"), in)
	if err != nil {
		failLink(c, err)
		return
	}
	ok(c, http.StatusOK, toLinkResponse(*link))
}

// DeleteLink godoc
// @ID          deleteLink
// @Summary     Delete a short link
// @Description Deletes the link and releases its slug. Recorded scans are kept.
// @Tags        Links
// @Security    BearerAuth
// @Param       id   path  string  true  "Link ID"  format(uuid)
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "QR code not found"
// @Router      /links/{id} [delete]
func (h *Handlers) DeleteLink(c *gin.Context) {
	if err := h.links.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		failLink(c, err)
		return
	}
	noContent(c)
}
