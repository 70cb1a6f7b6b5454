package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/permitflow-api/internal/dto"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
	"github.com/noah-isme/permitflow-api/pkg/response"
)

type approvalService interface {
	GetForApproval(ctx context.Context, token string) (*dto.ApprovalView, error)
	UpdateStatus(ctx context.Context, token string, req dto.DecisionRequest) (*dto.DecisionResponse, []string, error)
}

// ApprovalHandler serves the tokenized approver link.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// Get godoc
// @Summary Load a pending permit for the approver
// @Tags Approvals
// @Produce json
// @Param token path string true "Approval token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{token} [get]
func (h *ApprovalHandler) Get(c *gin.Context) {
	view, err := h.service.GetForApproval(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Decide godoc
// @Summary Approve or reject a permit
// @Tags Approvals
// @Accept json
// @Produce json
// @Param token path string true "Approval token"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /approvals/{token}/decision [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Validation failed: body: is not valid JSON"))
		return
	}
	result, warnings, err := h.service.UpdateStatus(c.Request.Context(), c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusOK, result, warnings)
}
