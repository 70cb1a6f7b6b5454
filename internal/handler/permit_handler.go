package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/permitflow-api/internal/dto"
	"github.com/noah-isme/permitflow-api/internal/service"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
	"github.com/noah-isme/permitflow-api/pkg/response"
)

type permitService interface {
	Submit(ctx context.Context, req dto.SubmitPermitRequest, files []dto.UploadedFile, originalTrackingID string) (*dto.SubmitPermitResponse, []string, error)
	Resubmit(ctx context.Context, originalTrackingID string, req dto.SubmitPermitRequest, files []dto.UploadedFile) (*dto.SubmitPermitResponse, []string, error)
	GetStatus(ctx context.Context, trackingID string) (*dto.PermitStatusResponse, error)
}

// submitBody is the JSON form of a submission; multipart requests carry the same object in
// the payload field.
type submitBody struct {
	dto.SubmitPermitRequest
	OriginalTrackingID string `json:"originalTrackingId"`
}

// PermitHandler serves the requester-facing permit endpoints.
type PermitHandler struct {
	service     permitService
	maxFileSize int64
}

// NewPermitHandler constructs the handler. maxFileSize caps how much of each uploaded part
// is read; anything larger is rejected by the service.
func NewPermitHandler(service permitService, maxFileSize int64) *PermitHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 * 1024 * 1024
	}
	return &PermitHandler{service: service, maxFileSize: maxFileSize}
}

// Submit godoc
// @Summary Submit a permit-to-work request
// @Tags Permits
// @Accept json,mpfd
// @Produce json
// @Param payload formData string false "Permit form as JSON (multipart)"
// @Param ppe formData file false "PPE photo"
// @Param team formData file false "Team photo"
// @Param certifications formData file false "Certifications photo"
// @Param siteConditions formData file false "Site conditions photo"
// @Param originalTrackingId formData string false "Tracking ID of the permit being replaced"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /permits [post]
func (h *PermitHandler) Submit(c *gin.Context) {
	body, files, err := h.bind(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, warnings, err := h.service.Submit(c.Request.Context(), body.SubmitPermitRequest, files, body.OriginalTrackingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusCreated, result, warnings)
}

// Resubmit godoc
// @Summary Resubmit a corrected permit replacing an earlier one
// @Tags Permits
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /permits/resubmit [post]
func (h *PermitHandler) Resubmit(c *gin.Context) {
	body, files, err := h.bind(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if strings.TrimSpace(body.OriginalTrackingID) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Validation failed: originalTrackingId: is required"))
		return
	}
	result, warnings, err := h.service.Resubmit(c.Request.Context(), body.OriginalTrackingID, body.SubmitPermitRequest, files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.WithWarnings(c, http.StatusCreated, result, warnings)
}

// Track godoc
// @Summary Track a permit by its tracking ID
// @Tags Permits
// @Produce json
// @Param id query string true "Tracking ID (case-insensitive)"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /permits/track [get]
func (h *PermitHandler) Track(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Query("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

func (h *PermitHandler) bind(c *gin.Context) (submitBody, []dto.UploadedFile, error) {
	var body submitBody
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&body); err != nil {
			return body, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: body: is not valid JSON")
		}
		return body, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return body, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: body: is not a valid multipart form")
	}
	payload := firstValue(form.Value, "payload")
	if payload == "" {
		return body, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: payload: is required")
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return body, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: payload: is not valid JSON")
	}
	if original := firstValue(form.Value, "originalTrackingId"); original != "" {
		body.OriginalTrackingID = original
	}

	var files []dto.UploadedFile
	for _, slot := range service.EvidenceSlots {
		headers := form.File[slot]
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			return body, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Validation failed: uploadedFiles.%s: was uploaded more than once", slot))
		}
		content, err := h.readPart(headers[0])
		if err != nil {
			return body, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("Validation failed: uploadedFiles.%s: could not be read", slot))
		}
		files = append(files, dto.UploadedFile{Slot: slot, Filename: headers[0].Filename, Content: content})
	}
	return body, files, nil
}

// readPart reads at most one byte past the limit so oversized files are still detected.
func (h *PermitHandler) readPart(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
}

func firstValue(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
