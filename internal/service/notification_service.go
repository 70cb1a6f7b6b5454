package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/permitflow-api/internal/models"
	"github.com/noah-isme/permitflow-api/pkg/jobs"
	"github.com/noah-isme/permitflow-api/pkg/mailer"
)

const (
	notificationJobType = "email"

	kindApprovalRequest = "approval_request"
	kindConfirmation    = "submission_confirmation"
	kindStatusUpdate    = "status_update"
)

var notificationTemplates = template.Must(template.New("notifications").Parse(`
{{define "approval_request"}}<h1>Permit-to-Work Approval Request</h1>
<p>A new permit request with Tracking ID <strong>{{.TrackingID}}</strong> requires your approval.</p>
{{if .ResubmittedFrom}}<p>This request replaces permit <strong>{{.ResubmittedFrom}}</strong>.</p>{{end}}
<p>Please click the link to review: <a href="{{.ApprovalLink}}">View Request</a></p>{{end}}
{{define "submission_confirmation"}}<h1>Submission Confirmed</h1>
<p>Your permit request with Tracking ID <strong>{{.TrackingID}}</strong> has been successfully submitted.</p>
<p>You will be notified once the approver takes action. You can track the status of your request here: <a href="{{.TrackingLink}}">Track Submission</a></p>{{end}}
{{define "status_update"}}<h1>Permit Status Updated</h1>
<p>The status for your permit with Tracking ID <strong>{{.TrackingID}}</strong> has been updated to: <strong>{{.Status}}</strong>.</p>
{{if eq .Status "Approved"}}<p>Your permit is now approved.</p>{{end}}
{{if .Remarks}}<p><strong>Rejection Remarks:</strong><br/>{{.Remarks}}</p>{{end}}
{{if .Suggestions}}<p><strong>Suggestions for Resubmission:</strong><br/>{{.Suggestions}}</p>{{end}}
<p>You can view the latest status here: <a href="{{.TrackingLink}}">Track Submission</a></p>{{end}}
`))

type notificationView struct {
	TrackingID      string
	Status          models.PermitStatus
	ApprovalLink    string
	TrackingLink    string
	ResubmittedFrom string
	Remarks         string
	Suggestions     string
}

type retryQueue interface {
	Enqueue(job jobs.Job) error
}

// NotificationService composes workflow e-mails and delivers them best-effort. Failed
// deliveries become warnings for the caller and are handed to the retry queue.
type NotificationService struct {
	sender  mailer.Sender
	queue   retryQueue
	baseURL string
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service. baseURL is the public web origin used in links.
func NewNotificationService(sender mailer.Sender, baseURL string, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{sender: sender, baseURL: baseURL, metrics: metrics, logger: logger}
}

// UseRetryQueue attaches the queue failed deliveries are re-submitted to.
func (s *NotificationService) UseRetryQueue(q retryQueue) {
	s.queue = q
}

// Deliver is the retry queue handler.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		s.logger.Error("dropping notification job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.sender.Send(ctx, msg)
}

// PermitSubmitted notifies the approver and the requester about a new permit.
func (s *NotificationService) PermitSubmitted(ctx context.Context, permit *models.Permit) []string {
	view := s.view(permit)
	view.ApprovalLink = s.baseURL + "/approve/" + permit.ApprovalToken
	if permit.ResubmittedFrom != nil {
		view.ResubmittedFrom = *permit.ResubmittedFrom
	}

	var warnings []string
	if w := s.notify(ctx, kindApprovalRequest, "approver", permit.Data.ApproverEmail,
		fmt.Sprintf("PTW Approval Request: %s", permit.TrackingID), view); w != "" {
		warnings = append(warnings, w)
	}
	if w := s.notify(ctx, kindConfirmation, "requester", permit.Data.RequesterEmail,
		fmt.Sprintf("PTW Submission Confirmation: %s", permit.TrackingID), view); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// StatusChanged tells the requester about an approver decision.
func (s *NotificationService) StatusChanged(ctx context.Context, permit *models.Permit) []string {
	view := s.view(permit)
	if permit.RejectionRemarks != nil {
		view.Remarks = *permit.RejectionRemarks
	}
	if permit.AISuggestions != nil {
		view.Suggestions = *permit.AISuggestions
	}
	w := s.notify(ctx, kindStatusUpdate, "requester", permit.Data.RequesterEmail,
		fmt.Sprintf("PTW Status Update for %s: %s", permit.TrackingID, permit.Status), view)
	if w == "" {
		return nil
	}
	return []string{w}
}

func (s *NotificationService) view(permit *models.Permit) notificationView {
	return notificationView{
		TrackingID:   permit.TrackingID,
		Status:       permit.Status,
		TrackingLink: s.baseURL + "/track?id=" + url.QueryEscape(permit.TrackingID),
	}
}

func (s *NotificationService) notify(ctx context.Context, kind, audience, to, subject string, view notificationView) string {
	var body bytes.Buffer
	if err := notificationTemplates.ExecuteTemplate(&body, kind, view); err != nil {
		s.logger.Error("render notification failed", zap.String("kind", kind), zap.Error(err))
		s.metrics.NotificationSent(kind, false)
		return fmt.Sprintf("Notification to %s could not be prepared.", audience)
	}
	msg := mailer.Message{To: to, Subject: subject, HTML: body.String()}

	err := s.sender.Send(ctx, msg)
	s.metrics.NotificationSent(kind, err == nil)
	if err == nil {
		return ""
	}
	s.logger.Warn("notification failed",
		zap.String("kind", kind),
		zap.String("tracking_id", view.TrackingID),
		zap.Error(err))

	if s.queue != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: msg}
		qErr := s.queue.Enqueue(job)
		if qErr == nil {
			return fmt.Sprintf("Notification to %s could not be sent; delivery will be retried.", audience)
		}
		s.logger.Warn("notification retry not queued", zap.String("kind", kind), zap.Error(qErr))
	}
	return fmt.Sprintf("Notification to %s could not be sent.", audience)
}
