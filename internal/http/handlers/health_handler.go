package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

const readyTimeout = 2 * time.Second

// Health godoc
// @ID       health
// @Summary  Liveness probe
// @Tags     Health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @ID          ready
// @Summary     Readiness probe
// @Description Pings every registered dependency. A failing dependency yields 503 and its name under "failed".
// @Tags        Health
// @Produce     json
// @Success     200  {object}  map[string]any
// @Failure     503  {object}  map[string]any
// @Router      /ready [get]
func (h *Handlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	failed := []string{}
	for name, p := range h.ready {
		if err := p.Ping(ctx); err != nil {
			failed = append(failed, name)
			_ = c.Error(err)
		}
	}
	sort.Strings(failed)

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
