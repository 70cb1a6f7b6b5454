package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/permitflow-api/internal/dto"
	"github.com/noah-isme/permitflow-api/internal/middleware"
	"github.com/noah-isme/permitflow-api/internal/models"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
	"github.com/noah-isme/permitflow-api/pkg/response"
)

type adminPermitService interface {
	List(ctx context.Context, query dto.PermitQuery) ([]dto.PermitListItem, *models.Pagination, error)
	Summary(ctx context.Context) (*models.PermitSummary, bool, error)
}

// AdminHandler exposes the reporting endpoints.
type AdminHandler struct {
	service adminPermitService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(service adminPermitService) *AdminHandler {
	return &AdminHandler{service: service}
}

// List godoc
// @Summary List permits
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Pending, Approved, Rejected or Resubmitted"
// @Param region query string false "Region"
// @Param circle query string false "Circle"
// @Param search query string false "Free-text search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size (max 200)"
// @Success 200 {object} response.Envelope
// @Router /admin/permits [get]
func (h *AdminHandler) List(c *gin.Context) {
	var query dto.PermitQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Validation failed: query: invalid parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Summary godoc
// @Summary Dashboard summary
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/permits/summary [get]
func (h *AdminHandler) Summary(c *gin.Context) {
	start := time.Now()
	summary, cacheHit, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}
