package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/permitflow-api/internal/dto"
	"github.com/noah-isme/permitflow-api/internal/models"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
)

const (
	summaryCacheKey     = "permits:summary"
	permitCachePattern  = "permits:*"
	summaryMonths       = 12
	defaultSuggestAfter = 15 * time.Second
)

type permitStore interface {
	Create(ctx context.Context, permit *models.Permit) error
	GetByTrackingID(ctx context.Context, trackingID string) (*models.Permit, error)
	GetByToken(ctx context.Context, token string) (*models.Permit, error)
	List(ctx context.Context, filter models.PermitFilter) ([]models.Permit, int, error)
	ApplyDecision(ctx context.Context, decision models.PermitDecision) (*models.Permit, error)
	AttachSuggestions(ctx context.Context, trackingID, suggestions string, at time.Time) error
	CreateResubmission(ctx context.Context, replacement *models.Permit, originalToken string, at time.Time) (*models.Permit, error)
}

type permitReportStore interface {
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
	AverageDecisionHours(ctx context.Context) (float64, error)
	MonthlyDecisions(ctx context.Context, since time.Time) ([]models.MonthlyDecisions, error)
	CountByRegion(ctx context.Context) ([]models.RegionCount, error)
}

type permitEventStore interface {
	Create(ctx context.Context, event *models.PermitEvent) error
	ListByTrackingID(ctx context.Context, trackingID string) ([]models.PermitEvent, error)
}

type identifierAssigner interface {
	Assign(ctx context.Context, siteID string) (string, string, error)
}

type permitNotifier interface {
	PermitSubmitted(ctx context.Context, permit *models.Permit) []string
	StatusChanged(ctx context.Context, permit *models.Permit) []string
}

type evidenceUploader interface {
	Check(files []dto.UploadedFile) error
	Store(trackingID string, files []dto.UploadedFile) (models.UploadedFiles, []string, error)
	Remove(keys []string)
}

// PermitService is the permit lifecycle manager: submission, approver decisions,
// resubmission linking, tracking and reporting.
type PermitService struct {
	repo           permitStore
	reports        permitReportStore
	events         permitEventStore
	validator      *PermitValidator
	assigner       identifierAssigner
	uploads        evidenceUploader
	notifier       permitNotifier
	suggester      Suggester
	cache          *CacheService
	metrics        *MetricsService
	logger         *zap.Logger
	now            func() time.Time
	suggestTimeout time.Duration
}

// PermitServiceOption configures the service.
type PermitServiceOption func(*PermitService)

// WithEvidenceUploader enables file attachments.
func WithEvidenceUploader(u evidenceUploader) PermitServiceOption {
	return func(s *PermitService) { s.uploads = u }
}

// WithPermitNotifier sets the notifier used after submissions and decisions.
func WithPermitNotifier(n permitNotifier) PermitServiceOption {
	return func(s *PermitService) { s.notifier = n }
}

// WithSuggester sets the correction suggester consulted on rejection.
func WithSuggester(sg Suggester, timeout time.Duration) PermitServiceOption {
	return func(s *PermitService) {
		if sg != nil {
			s.suggester = sg
		}
		if timeout > 0 {
			s.suggestTimeout = timeout
		}
	}
}

// WithSummaryCache caches the admin summary.
func WithSummaryCache(cache *CacheService) PermitServiceOption {
	return func(s *PermitService) { s.cache = cache }
}

// WithPermitReports enables the admin summary.
func WithPermitReports(reports permitReportStore) PermitServiceOption {
	return func(s *PermitService) { s.reports = reports }
}

// WithPermitMetrics records workflow counters.
func WithPermitMetrics(metrics *MetricsService) PermitServiceOption {
	return func(s *PermitService) { s.metrics = metrics }
}

// WithPermitClock overrides the time source.
func WithPermitClock(now func() time.Time) PermitServiceOption {
	return func(s *PermitService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPermitService constructs the service.
func NewPermitService(repo permitStore, events permitEventStore, validator *PermitValidator, assigner identifierAssigner, logger *zap.Logger, opts ...PermitServiceOption) *PermitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = NewPermitValidator(nil, models.DefaultCatalog())
	}
	svc := &PermitService{
		repo:           repo,
		events:         events,
		validator:      validator,
		assigner:       assigner,
		suggester:      NopSuggester{},
		logger:         logger,
		now:            time.Now,
		suggestTimeout: defaultSuggestAfter,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit creates a new Pending permit. When originalTrackingID is non-empty the submission
// replaces that permit.
func (s *PermitService) Submit(ctx context.Context, req dto.SubmitPermitRequest, files []dto.UploadedFile, originalTrackingID string) (*dto.SubmitPermitResponse, []string, error) {
	if strings.TrimSpace(originalTrackingID) != "" {
		return s.Resubmit(ctx, originalTrackingID, req, files)
	}
	data, err := s.check(req, files)
	if err != nil {
		return nil, nil, err
	}
	permit, stored, err := s.build(ctx, data, files, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.Create(ctx, permit); err != nil {
		s.discard(stored)
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save permit")
	}
	warnings := s.created(ctx, permit, len(stored))
	s.invalidate(ctx)
	return &dto.SubmitPermitResponse{TrackingID: permit.TrackingID}, warnings, nil
}

// Resubmit creates a replacement permit and marks the original as Resubmitted in the same
// write. An original that was already replaced is refused with ALREADY_RESUBMITTED and
// nothing is created. A missing original is reported as a warning and the replacement is
// still created.
func (s *PermitService) Resubmit(ctx context.Context, originalTrackingID string, req dto.SubmitPermitRequest, files []dto.UploadedFile) (*dto.SubmitPermitResponse, []string, error) {
	originalID := strings.ToUpper(strings.TrimSpace(originalTrackingID))
	if originalID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: originalTrackingId: is required")
	}
	data, err := s.check(req, files)
	if err != nil {
		return nil, nil, err
	}

	original, err := s.repo.GetByTrackingID(ctx, originalID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		original = nil
	case err != nil:
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load original permit")
	case original.ResubmittedTo != nil:
		s.metrics.ResubmissionLinked("superseded")
		return nil, nil, appErrors.ErrAlreadyResubmitted
	}

	permit, stored, err := s.build(ctx, data, files, &originalID)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	if original == nil {
		if err := s.repo.Create(ctx, permit); err != nil {
			s.discard(stored)
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save permit")
		}
		s.metrics.ResubmissionLinked("missing")
		s.logger.Warn("resubmission original not found", zap.String("original", originalID), zap.String("tracking_id", permit.TrackingID))
		warnings = append(warnings, fmt.Sprintf("Original permit %s was not found; the new permit was submitted without updating it.", originalID))
	} else {
		linked, err := s.repo.CreateResubmission(ctx, permit, NewApprovalToken(), s.now().UTC())
		if err != nil {
			s.discard(stored)
			if errors.Is(err, sql.ErrNoRows) {
				s.metrics.ResubmissionLinked("superseded")
				return nil, nil, appErrors.ErrAlreadyResubmitted
			}
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save permit")
		}
		s.metrics.ResubmissionLinked("linked")
		from := original.Status
		note := "replaced by " + permit.TrackingID
		s.record(ctx, linked, models.PermitActionResubmitted, &from, models.ActorRequester, &note)
	}

	warnings = append(warnings, s.created(ctx, permit, len(stored))...)
	s.invalidate(ctx)
	return &dto.SubmitPermitResponse{TrackingID: permit.TrackingID, ResubmittedFrom: permit.ResubmittedFrom}, warnings, nil
}

// check validates the payload and attachments without touching storage.
func (s *PermitService) check(req dto.SubmitPermitRequest, files []dto.UploadedFile) (models.PermitData, error) {
	data, err := s.validator.Validate(req)
	if err != nil {
		return models.PermitData{}, err
	}
	if data.RiskAssessment != models.RiskConfirmed {
		return models.PermitData{}, appErrors.ErrRiskNotConfirmed
	}
	if len(files) > 0 {
		if s.uploads == nil {
			return models.PermitData{}, appErrors.Clone(appErrors.ErrValidation, "Validation failed: uploadedFiles: uploads are not enabled")
		}
		if err := s.uploads.Check(files); err != nil {
			return models.PermitData{}, err
		}
	}
	return data, nil
}

// build assigns identifiers and stores evidence for a permit that is not yet persisted.
func (s *PermitService) build(ctx context.Context, data models.PermitData, files []dto.UploadedFile, resubmittedFrom *string) (*models.Permit, []string, error) {
	trackingID, token, err := s.assigner.Assign(ctx, data.SiteID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign tracking id")
	}

	var stored []string
	if len(files) > 0 {
		data.UploadedFiles, stored, err = s.uploads.Store(trackingID, files)
		if err != nil {
			s.logger.Error("permit upload failed", zap.String("tracking_id", trackingID), zap.Error(err))
			return nil, nil, err
		}
	}

	now := s.now().UTC()
	return &models.Permit{
		TrackingID:      trackingID,
		Status:          models.PermitStatusPending,
		ApprovalToken:   token,
		Data:            data,
		ResubmittedFrom: resubmittedFrom,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, stored, nil
}

func (s *PermitService) discard(stored []string) {
	if s.uploads != nil && len(stored) > 0 {
		s.uploads.Remove(stored)
	}
}

// created runs the post-commit steps for a new permit and returns advisory warnings.
func (s *PermitService) created(ctx context.Context, permit *models.Permit, files int) []string {
	s.logger.Info("permit submitted", zap.String("tracking_id", permit.TrackingID), zap.Int("files", files))
	s.metrics.PermitSubmitted()

	var note *string
	if permit.ResubmittedFrom != nil {
		n := "replaces " + *permit.ResubmittedFrom
		note = &n
	}
	s.record(ctx, permit, models.PermitActionCreated, nil, models.ActorRequester, note)

	if s.notifier == nil {
		return nil
	}
	return s.notifier.PermitSubmitted(ctx, permit)
}

// GetForApproval returns a Pending permit for the approver holding token.
func (s *PermitService) GetForApproval(ctx context.Context, token string) (*dto.ApprovalView, error) {
	permit, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if permit.Status != models.PermitStatusPending || permit.ApprovalToken != token {
		return nil, appErrors.ErrAlreadyActioned
	}
	return &dto.ApprovalView{
		TrackingID:      permit.TrackingID,
		Status:          permit.Status,
		Data:            permit.Data,
		ResubmittedFrom: permit.ResubmittedFrom,
		SubmittedAt:     permit.CreatedAt,
	}, nil
}

// UpdateStatus applies an approver decision exactly once per token.
func (s *PermitService) UpdateStatus(ctx context.Context, token string, req dto.DecisionRequest) (*dto.DecisionResponse, []string, error) {
	if !req.Status.IsDecision() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: status: must be one of Approved, Rejected")
	}
	var remarks *string
	if req.Status == models.PermitStatusRejected {
		if strings.TrimSpace(req.Remarks) == "" {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: remarks: Rejection remarks are mandatory.")
		}
		r := req.Remarks
		remarks = &r
	}
	if strings.TrimSpace(token) == "" {
		return nil, nil, appErrors.ErrInvalidToken
	}

	permit, err := s.repo.ApplyDecision(ctx, models.PermitDecision{
		Token:    token,
		NewToken: NewApprovalToken(),
		Status:   req.Status,
		Remarks:  remarks,
		At:       s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.byToken(ctx, token); lookupErr != nil {
				return nil, nil, lookupErr
			}
			return nil, nil, appErrors.ErrAlreadyActioned
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update permit status")
	}

	s.logger.Info("permit actioned", zap.String("tracking_id", permit.TrackingID), zap.String("status", string(permit.Status)))
	s.metrics.PermitDecided(string(permit.Status))
	pending := models.PermitStatusPending
	action := models.PermitActionApproved
	if permit.Status == models.PermitStatusRejected {
		action = models.PermitActionRejected
	}
	s.record(ctx, permit, action, &pending, models.ActorApprover, remarks)

	var warnings []string
	if permit.Status == models.PermitStatusRejected {
		if w := s.attachSuggestions(ctx, permit); w != "" {
			warnings = append(warnings, w)
		}
	}
	if s.notifier != nil {
		warnings = append(warnings, s.notifier.StatusChanged(ctx, permit)...)
	}
	s.invalidate(ctx)

	return &dto.DecisionResponse{
		TrackingID:    permit.TrackingID,
		Status:        permit.Status,
		AISuggestions: permit.AISuggestions,
	}, warnings, nil
}

// attachSuggestions runs after the decision committed; its failure never affects the decision.
func (s *PermitService) attachSuggestions(ctx context.Context, permit *models.Permit) string {
	if _, nop := s.suggester.(NopSuggester); nop {
		return ""
	}
	details, err := json.MarshalIndent(permit.Data, "", "  ")
	if err != nil {
		s.logger.Warn("encode permit for suggestions failed", zap.Error(err))
		return ""
	}
	suggestCtx, cancel := context.WithTimeout(ctx, s.suggestTimeout)
	defer cancel()

	text, err := s.suggester.Suggest(suggestCtx, string(details), *permit.RejectionRemarks)
	s.metrics.SuggestionRequested(err == nil)
	if err != nil {
		s.logger.Warn("suggestion service failed", zap.String("tracking_id", permit.TrackingID), zap.Error(err))
		return "Correction suggestions are unavailable for this rejection."
	}
	if text == "" {
		return ""
	}
	if err := s.repo.AttachSuggestions(ctx, permit.TrackingID, text, s.now().UTC()); err != nil {
		s.logger.Warn("attach suggestions failed", zap.String("tracking_id", permit.TrackingID), zap.Error(err))
		return "Correction suggestions could not be saved."
	}
	permit.AISuggestions = &text
	rejected := models.PermitStatusRejected
	s.record(ctx, permit, models.PermitActionSuggestionsAttached, &rejected, models.ActorSystem, nil)
	return ""
}

// GetStatus returns the tracking record, looked up case-insensitively.
func (s *PermitService) GetStatus(ctx context.Context, trackingID string) (*dto.PermitStatusResponse, error) {
	if strings.TrimSpace(trackingID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: id: is required")
	}
	permit, err := s.repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tracking ID not found.")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permit")
	}

	history := []models.PermitEvent{}
	if s.events != nil {
		events, err := s.events.ListByTrackingID(ctx, permit.TrackingID)
		if err != nil {
			s.logger.Warn("load permit history failed", zap.String("tracking_id", permit.TrackingID), zap.Error(err))
		} else if events != nil {
			history = events
		}
	}

	return &dto.PermitStatusResponse{
		TrackingID:       permit.TrackingID,
		Status:           permit.Status,
		SubmittedAt:      permit.CreatedAt,
		LastUpdatedAt:    permit.UpdatedAt,
		RejectionRemarks: permit.RejectionRemarks,
		AISuggestions:    permit.AISuggestions,
		ResubmittedFrom:  permit.ResubmittedFrom,
		ResubmittedTo:    permit.ResubmittedTo,
		Data:             permit.Data,
		History:          history,
	}, nil
}

// List returns permits for the admin table, newest first.
func (s *PermitService) List(ctx context.Context, query dto.PermitQuery) ([]dto.PermitListItem, *models.Pagination, error) {
	filter := models.PermitFilter{
		Region: strings.TrimSpace(query.Region),
		Circle: strings.TrimSpace(query.Circle),
		Search: strings.TrimSpace(query.Search),
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		filter.Status = models.PermitStatus(status)
		if !filter.Status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "Validation failed: status: is not a known status")
		}
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	size := query.Size
	if size <= 0 {
		size = 50
	}
	if size > 200 {
		size = 200
	}
	filter.Limit = size
	filter.Offset = (page - 1) * size

	permits, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permits")
	}
	items := make([]dto.PermitListItem, 0, len(permits))
	for _, p := range permits {
		items = append(items, dto.PermitListItem{
			TrackingID:       p.TrackingID,
			Status:           p.Status,
			SiteName:         p.Data.SiteName,
			SiteID:           p.Data.SiteID,
			Region:           p.Data.Region,
			Circle:           p.Data.Circle,
			RequesterCompany: p.Data.RequesterCompany,
			RequesterEmail:   p.Data.RequesterEmail,
			ApproverEmail:    p.Data.ApproverEmail,
			WorkTypes:        p.Data.WorkTypes,
			PermissionDate:   p.Data.PermissionDate,
			RejectionRemarks: p.RejectionRemarks,
			ResubmittedFrom:  p.ResubmittedFrom,
			ResubmittedTo:    p.ResubmittedTo,
			CreatedAt:        p.CreatedAt,
			UpdatedAt:        p.UpdatedAt,
		})
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary aggregates dashboard figures. The boolean reports a cache hit.
func (s *PermitService) Summary(ctx context.Context) (*models.PermitSummary, bool, error) {
	if s.reports == nil {
		return nil, false, appErrors.Clone(appErrors.ErrServiceUnavailable, "reporting not configured")
	}
	var cached models.PermitSummary
	if hit, _ := s.cache.Get(ctx, summaryCacheKey, &cached); hit {
		return &cached, true, nil
	}

	start := time.Now()
	counts, err := s.reports.CountByStatus(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}
	avgHours, err := s.reports.AverageDecisionHours(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}
	now := s.now().UTC()
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(summaryMonths - 1), 0)
	monthly, err := s.reports.MonthlyDecisions(ctx, firstMonth)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}
	regions, err := s.reports.CountByRegion(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary")
	}
	s.metrics.ObserveDBQuery("permit_summary", time.Since(start))

	summary := &models.PermitSummary{
		StatusCounts:     counts,
		ApprovalRate:     approvalRate(counts.Approved, counts.Rejected),
		AvgDecisionHours: math.Round(avgHours*10) / 10,
		Monthly:          fillMonths(firstMonth, summaryMonths, monthly),
		ByRegion:         regions,
	}
	if summary.ByRegion == nil {
		summary.ByRegion = []models.RegionCount{}
	}
	_ = s.cache.Set(ctx, summaryCacheKey, summary, 0)
	return summary, false, nil
}

func approvalRate(approved, rejected int) int {
	if approved+rejected == 0 {
		return 0
	}
	return int(math.Round(float64(approved) * 100 / float64(approved+rejected)))
}

func fillMonths(first time.Time, n int, rows []models.MonthlyDecisions) []models.MonthlyDecisions {
	byMonth := make(map[string]models.MonthlyDecisions, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r
	}
	out := make([]models.MonthlyDecisions, 0, n)
	for i := 0; i < n; i++ {
		key := first.AddDate(0, i, 0).Format("2006-01")
		row, ok := byMonth[key]
		if !ok {
			row = models.MonthlyDecisions{Month: key}
		}
		out = append(out, row)
	}
	return out
}

func (s *PermitService) byToken(ctx context.Context, token string) (*models.Permit, error) {
	if strings.TrimSpace(token) == "" {
		return nil, appErrors.ErrInvalidToken
	}
	permit, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidToken
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Could not load permit details.")
	}
	return permit, nil
}

func (s *PermitService) record(ctx context.Context, permit *models.Permit, action models.PermitAction, from *models.PermitStatus, actor string, note *string) {
	if s.events == nil {
		return
	}
	event := &models.PermitEvent{
		PermitID:   permit.ID,
		TrackingID: permit.TrackingID,
		Action:     action,
		FromStatus: from,
		ToStatus:   permit.Status,
		Actor:      actor,
		Note:       note,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Warn("record permit event failed",
			zap.String("tracking_id", permit.TrackingID), zap.String("action", string(action)), zap.Error(err))
	}
}

func (s *PermitService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, permitCachePattern)
}
