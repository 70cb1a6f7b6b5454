package models

import "time"

// PermitAction names an entry in a permit's audit trail.
type PermitAction string

const (
	PermitActionCreated             PermitAction = "CREATED"
	PermitActionApproved            PermitAction = "APPROVED"
	PermitActionRejected            PermitAction = "REJECTED"
	PermitActionResubmitted         PermitAction = "RESUBMITTED"
	PermitActionSuggestionsAttached PermitAction = "SUGGESTIONS_ATTACHED"
)

// Actors recorded on events. Approvers act through a capability link, not an account.
const (
	ActorRequester = "requester"
	ActorApprover  = "approver"
	ActorSystem    = "system"
)

// PermitEvent is an append-only audit record.
type PermitEvent struct {
	ID         string        `db:"id" json:"id"`
	PermitID   string        `db:"permit_id" json:"permitId"`
	TrackingID string        `db:"tracking_id" json:"trackingId"`
	Action     PermitAction  `db:"action" json:"action"`
	FromStatus *PermitStatus `db:"from_status" json:"fromStatus,omitempty"`
	ToStatus   PermitStatus  `db:"to_status" json:"toStatus"`
	Actor      string        `db:"actor" json:"actor"`
	Note       *string       `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"createdAt"`
}
