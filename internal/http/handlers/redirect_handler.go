package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-qrlink-backend/internal/services"
)

// Redirect godoc
// @ID          resolveSlug
// @Summary     Resolve a QR short link
// @Description Redirects to the link target with 302 Found. Scans of links with tracking enabled are recorded asynchronously; HEAD requests are never recorded.
// @Tags        Redirect
// @Produce     json
// @Param       slug  path  string  true  "Public slug"  example(promo1)
// @Success     302   {string}  string  "Found"
// @Header      302   {string}  Location  "Target URL"
// @Failure     404   {object}  handlers.ErrorResponse  "QR code not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal server error"
// @Router      /{slug} [get]
func (h *Handlers) Redirect(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		fail(c, http.StatusNotFound, ErrCodeNotFound, MsgLinkNotFound)
		return
	}

	res, err := h.links.Resolve(c.Request.Context(), slug)
	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, MsgLinkNotFound)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, MsgInternal, err)
		return
	}

	// Browsers must come back on every scan or tracking undercounts.
	c.Header("Cache-Control", "private, no-store")
	c.Redirect(http.StatusFound, res.Target)

	if h.tracker == nil || res.Link == nil || !res.Link.TrackingEnabled || c.Request.Method == http.MethodHead {
		return
	}
	h.tracker.Track(services.ScanInput{
		ShortLinkID: res.Link.ID,
		ClientIP:    services.ClientIP(c.Request.Header),
		UserAgent:   c.Request.UserAgent(),
		ObservedAt:  time.Now().UTC(),
	})
}
