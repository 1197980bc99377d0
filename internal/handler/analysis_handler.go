package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mbs-portal-api/internal/middleware"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	"github.com/noah-isme/mbs-portal-api/pkg/response"
)

type analysisProfileSource interface {
	Get(ctx context.Context, profileID string) (*models.Profile, error)
}

type analysisService interface {
	Analyze(ctx context.Context, profile *models.Profile) (*models.AnalysisResult, bool, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// AnalysisHandler exposes the derived analytics endpoints.
type AnalysisHandler struct {
	profiles analysisProfileSource
	analysis analysisService
	metrics  metricsSnapshotter
}

// NewAnalysisHandler builds a new handler.
func NewAnalysisHandler(profiles analysisProfileSource, analysis analysisService, metrics metricsSnapshotter) *AnalysisHandler {
	return &AnalysisHandler{profiles: profiles, analysis: analysis, metrics: metrics}
}

// Analyze godoc
// @Summary Full analysis for a profile
// @Description Averages, trends, Monte Carlo projections and path analysis.
// @Tags Analysis
// @Produce json
// @Param id path string true "Profile id"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id}/analysis [get]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, hit, err := h.analysis.Analyze(c.Request.Context(), profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// SystemMetrics godoc
// @Summary Instrumentation snapshot
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /system/metrics [get]
func (h *AnalysisHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot())
}
