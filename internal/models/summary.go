package models

// StatusCounts tallies permits per lifecycle status.
type StatusCounts struct {
	Total       int `db:"total" json:"total"`
	Pending     int `db:"pending" json:"pending"`
	Approved    int `db:"approved" json:"approved"`
	Rejected    int `db:"rejected" json:"rejected"`
	Resubmitted int `db:"resubmitted" json:"resubmitted"`
}

// MonthlyDecisions counts decisions in one calendar month, keyed "YYYY-MM".
type MonthlyDecisions struct {
	Month    string `db:"month" json:"month"`
	Approved int    `db:"approved" json:"approved"`
	Rejected int    `db:"rejected" json:"rejected"`
}

// RegionCount counts permits per region.
type RegionCount struct {
	Region string `db:"region" json:"region"`
	Count  int    `db:"count" json:"count"`
}

// PermitSummary aggregates the admin dashboard figures.
type PermitSummary struct {
	StatusCounts
	ApprovalRate     int                `json:"approvalRate"`
	AvgDecisionHours float64            `json:"avgDecisionHours"`
	Monthly          []MonthlyDecisions `json:"monthly"`
	ByRegion         []RegionCount      `json:"byRegion"`
}
