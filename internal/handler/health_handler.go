package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type healthProbe interface {
	Healthy(ctx context.Context) bool
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db    healthProbe
	cache healthProbe
}

// NewHealthHandler builds a new handler. Nil probes are skipped.
func NewHealthHandler(db, cache healthProbe) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready godoc
// @Summary Readiness probe
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	ready := true
	if h.db != nil {
		ok := h.db.Healthy(c.Request.Context())
		checks["database"] = statusWord(ok)
		ready = ready && ok
	}
	if h.cache != nil {
		ok := h.cache.Healthy(c.Request.Context())
		checks["cache"] = statusWord(ok)
		ready = ready && ok
	}
	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

func statusWord(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
