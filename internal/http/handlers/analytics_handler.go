package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-qrlink-backend/internal/services"
)

// AnalyticsRequest names the links to aggregate.
type AnalyticsRequest struct {
	ShortLinkIDs []string `json:"shortLinkIds" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// Analytics godoc
// @ID          aggregateScans
// @Summary     Aggregate scans
// @Description Returns total scans, device, location and map rollups for the requested links. Links the caller does not own are ignored.
// @Tags        Analytics
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.AnalyticsRequest  true  "Links to aggregate"
// @Success     200  {object}  services.AnalyticsReport
// @Failure     400  {object}  handlers.ErrorResponse  "shortLinkIds missing, empty or not an array"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal server error"
// @Router      /analytics [post]
func (h *Handlers) Analytics(c *gin.Context) {
	var req AnalyticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrNoShortLinkIDs.Error())
		return
	}

	report, err := h.analytics.Aggregate(c.Request.Context(), ownerID(c), req.ShortLinkIDs)
	switch {
	case errors.Is(err, services.ErrNoShortLinkIDs):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, MsgInternal, err)
		return
	}
	ok(c, http.StatusOK, report)
}
