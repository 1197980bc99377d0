package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mbs-portal-api/internal/dto"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/response"
)

type profileService interface {
	Import(ctx context.Context, req dto.ImportRequest) (*dto.ImportResponse, error)
	Get(ctx context.Context, profileID string) (*models.Profile, error)
	Delete(ctx context.Context, profileID string) error
	UpdateSettings(ctx context.Context, profileID string, req dto.SettingsRequest) (*models.Profile, error)
	UpdatePonderations(ctx context.Context, profileID string, req dto.PonderationsRequest) (*models.Profile, error)
	Averages(ctx context.Context, profileID string) (*models.AveragesResult, error)
}

// ProfileHandler exposes profile lifecycle endpoints.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler builds a new handler.
func NewProfileHandler(service profileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Import godoc
// @Summary Import pasted portal text into a profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body dto.ImportRequest true "Pasted portal text"
// @Success 201 {object} response.Envelope
// @Router /profiles/import [post]
func (h *ProfileHandler) Import(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Fetch a stored profile
// @Tags Profiles
// @Produce json
// @Param id path string true "Profile id"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id} [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ProfileResponse{Profile: profile})
}

// Delete godoc
// @Summary Delete a profile and its data
// @Tags Profiles
// @Param id path string true "Profile id"
// @Success 204
// @Router /profiles/{id} [delete]
func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateSettings godoc
// @Summary Replace profile settings
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile id"
// @Param payload body dto.SettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id}/settings [put]
func (h *ProfileHandler) UpdateSettings(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	profile, err := h.service.UpdateSettings(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ProfileResponse{Profile: profile})
}

// UpdatePonderations godoc
// @Summary Override assignment weights
// @Tags Profiles
// @Accept json
// @Produce json
// @Param id path string true "Profile id"
// @Param payload body dto.PonderationsRequest true "Weight overrides"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id}/ponderations [put]
func (h *ProfileHandler) UpdatePonderations(c *gin.Context) {
	var req dto.PonderationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ponderations payload"))
		return
	}
	profile, err := h.service.UpdatePonderations(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ProfileResponse{Profile: profile})
}

// Averages godoc
// @Summary Compute weighted averages for a profile
// @Tags Profiles
// @Produce json
// @Param id path string true "Profile id"
// @Success 200 {object} response.Envelope
// @Router /profiles/{id}/averages [get]
func (h *ProfileHandler) Averages(c *gin.Context) {
	result, err := h.service.Averages(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
