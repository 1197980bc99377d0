package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mbs-portal-api/internal/dto"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/response"
)

type exportService interface {
	Generate(ctx context.Context, profileID, format string) (*dto.ReportResponse, error)
	Open(token string) (*os.File, string, error)
}

// ExportHandler exposes report generation and signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds a new handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Generate godoc
// @Summary Render a report card for a profile
// @Tags Export
// @Produce json
// @Param id path string true "Profile id"
// @Param format query string false "Report format (csv or pdf)" default(csv)
// @Success 201 {object} response.Envelope
// @Router /profiles/{id}/report [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	result, err := h.service.Generate(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a previously generated report
// @Tags Export
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, filename, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read report"))
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(filename, ".csv"):
		contentType = "text/csv"
	case strings.HasSuffix(filename, ".pdf"):
		contentType = "application/pdf"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, headers)
}
