package dto

import (
	"time"

	"github.com/noah-isme/permitflow-api/internal/models"
)

// SubmitPermitRequest is the raw submission form. Uploaded files travel as multipart parts
// and are merged into UploadedFiles by the service.
type SubmitPermitRequest struct {
	RequesterCompany     string              `json:"requesterCompany" validate:"required"`
	SiteName             string              `json:"siteName" validate:"required"`
	SiteID               string              `json:"siteId" validate:"required,siteid"`
	Region               string              `json:"region" validate:"required,region"`
	Circle               string              `json:"circle" validate:"required"`
	TeamMembers          []models.TeamMember `json:"teamMembers" validate:"min=1,dive"`
	WorkTypes            []string            `json:"workTypes" validate:"min=1,dive,worktype"`
	OtherWorkDescription string              `json:"otherWorkDescription"`
	RiskAssessment       string              `json:"riskAssessment" validate:"required,oneof='I confirm' 'I do not confirm'"`
	PPEConfirmation      string              `json:"ppeConfirmation" validate:"required,oneof='Confirmed' 'Not confirmed'"`
	ToolBoxTalks         []string            `json:"toolBoxTalks" validate:"min=1,dive,toolboxtalk"`
	PermissionDate       string              `json:"permissionDate" validate:"required,permissiondate"`
	RequesterEmail       string              `json:"requesterEmail" validate:"required,email"`
	ApproverEmail        string              `json:"approverEmail" validate:"required,email,approver"`
	ContactNumber        string              `json:"contactNumber" validate:"required,contactnumber"`
	Declaration          bool                `json:"declaration"`
}

// UploadedFile is one evidence photo attached to a submission. Slot is one of
// ppe, team, certifications or siteConditions.
type UploadedFile struct {
	Slot     string
	Filename string
	Content  []byte
}

// SubmitPermitResponse is returned after a successful submission.
type SubmitPermitResponse struct {
	TrackingID      string  `json:"trackingId"`
	ResubmittedFrom *string `json:"resubmittedFrom,omitempty"`
}

// DecisionRequest carries the approver's action.
type DecisionRequest struct {
	Status  models.PermitStatus `json:"status"`
	Remarks string              `json:"remarks"`
}

// DecisionResponse reports the applied decision.
type DecisionResponse struct {
	TrackingID    string              `json:"trackingId"`
	Status        models.PermitStatus `json:"status"`
	AISuggestions *string             `json:"aiSuggestions,omitempty"`
}

// ApprovalView is the permit as shown to the approver.
type ApprovalView struct {
	TrackingID      string              `json:"trackingId"`
	Status          models.PermitStatus `json:"status"`
	Data            models.PermitData   `json:"data"`
	ResubmittedFrom *string             `json:"resubmittedFrom,omitempty"`
	SubmittedAt     time.Time           `json:"submittedAt"`
}

// PermitStatusResponse is the full tracking record.
type PermitStatusResponse struct {
	TrackingID       string               `json:"trackingId"`
	Status           models.PermitStatus  `json:"status"`
	SubmittedAt      time.Time            `json:"submittedAt"`
	LastUpdatedAt    time.Time            `json:"lastUpdatedAt"`
	RejectionRemarks *string              `json:"rejectionRemarks,omitempty"`
	AISuggestions    *string              `json:"aiSuggestions,omitempty"`
	ResubmittedFrom  *string              `json:"resubmittedFrom,omitempty"`
	ResubmittedTo    *string              `json:"resubmittedTo,omitempty"`
	Data             models.PermitData    `json:"data"`
	History          []models.PermitEvent `json:"history"`
}

// PermitListItem is one row of the admin table.
type PermitListItem struct {
	TrackingID       string              `json:"trackingId"`
	Status           models.PermitStatus `json:"status"`
	SiteName         string              `json:"siteName"`
	SiteID           string              `json:"siteId"`
	Region           string              `json:"region"`
	Circle           string              `json:"circle"`
	RequesterCompany string              `json:"requesterCompany"`
	RequesterEmail   string              `json:"requesterEmail"`
	ApproverEmail    string              `json:"approverEmail"`
	WorkTypes        []string            `json:"workTypes"`
	PermissionDate   time.Time           `json:"permissionDate"`
	RejectionRemarks *string             `json:"rejectionRemarks,omitempty"`
	ResubmittedFrom  *string             `json:"resubmittedFrom,omitempty"`
	ResubmittedTo    *string             `json:"resubmittedTo,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// PermitQuery mirrors the admin listing filters.
type PermitQuery struct {
	Status string `form:"status"`
	Region string `form:"region"`
	Circle string `form:"circle"`
	Search string `form:"search"`
	Page   int    `form:"page"`
	Size   int    `form:"page_size"`
}
