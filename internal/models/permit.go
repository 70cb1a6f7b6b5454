package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PermitStatus captures the lifecycle states of a permit.
type PermitStatus string

const (
	PermitStatusPending     PermitStatus = "Pending"
	PermitStatusApproved    PermitStatus = "Approved"
	PermitStatusRejected    PermitStatus = "Rejected"
	PermitStatusResubmitted PermitStatus = "Resubmitted"
)

// IsDecision reports whether the status is a valid approver decision.
func (s PermitStatus) IsDecision() bool {
	return s == PermitStatusApproved || s == PermitStatusRejected
}

// Valid reports whether s is a known status.
func (s PermitStatus) Valid() bool {
	switch s {
	case PermitStatusPending, PermitStatusApproved, PermitStatusRejected, PermitStatusResubmitted:
		return true
	}
	return false
}

// TeamMember is one person working under the permit.
type TeamMember struct {
	Name         string `json:"name" validate:"required"`
	FarmOrToclip string `json:"farmOrToclip" validate:"required"`
}

// UploadedFiles holds durable retrieval URLs for evidence photos.
type UploadedFiles struct {
	PPE            string `json:"ppe,omitempty"`
	Team           string `json:"team,omitempty"`
	Certifications string `json:"certifications,omitempty"`
	SiteConditions string `json:"siteConditions,omitempty"`
}

// PermitData is the submitted form payload, stored as JSONB.
type PermitData struct {
	RequesterCompany     string        `json:"requesterCompany"`
	SiteName             string        `json:"siteName"`
	SiteID               string        `json:"siteId"`
	Region               string        `json:"region"`
	Circle               string        `json:"circle"`
	TeamMembers          []TeamMember  `json:"teamMembers"`
	WorkTypes            []string      `json:"workTypes"`
	OtherWorkDescription string        `json:"otherWorkDescription,omitempty"`
	RiskAssessment       string        `json:"riskAssessment"`
	PPEConfirmation      string        `json:"ppeConfirmation"`
	ToolBoxTalks         []string      `json:"toolBoxTalks"`
	UploadedFiles        UploadedFiles `json:"uploadedFiles"`
	PermissionDate       time.Time     `json:"permissionDate"`
	RequesterEmail       string        `json:"requesterEmail"`
	ApproverEmail        string        `json:"approverEmail"`
	ContactNumber        string        `json:"contactNumber"`
	Declaration          bool          `json:"declaration"`
}

// Value implements driver.Valuer.
func (d PermitData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner.
func (d *PermitData) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*d = PermitData{}
		return nil
	default:
		return fmt.Errorf("unsupported permit data type %T", src)
	}
	return json.Unmarshal(raw, d)
}

// Permit is the central workflow record.
type Permit struct {
	ID               string       `db:"id" json:"id"`
	TrackingID       string       `db:"tracking_id" json:"trackingId"`
	Status           PermitStatus `db:"status" json:"status"`
	ApprovalToken    string       `db:"approval_token" json:"-"`
	ActionedToken    *string      `db:"actioned_token" json:"-"`
	Data             PermitData   `db:"data" json:"data"`
	RejectionRemarks *string      `db:"rejection_remarks" json:"rejectionRemarks,omitempty"`
	AISuggestions    *string      `db:"ai_suggestions" json:"aiSuggestions,omitempty"`
	ResubmittedFrom  *string      `db:"resubmitted_from" json:"resubmittedFrom,omitempty"`
	ResubmittedTo    *string      `db:"resubmitted_to" json:"resubmittedTo,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updatedAt"`
}

// PermitDecision is the atomic state change applied by an approver.
type PermitDecision struct {
	Token    string
	NewToken string
	Status   PermitStatus
	Remarks  *string
	At       time.Time
}

// PermitFilter constrains admin listing queries.
type PermitFilter struct {
	Status PermitStatus
	Region string
	Circle string
	Search string
	Limit  int
	Offset int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
