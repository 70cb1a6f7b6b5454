package models

import "strings"

// Literal values accepted for the safety confirmations.
const (
	RiskConfirmed    = "I confirm"
	RiskNotConfirmed = "I do not confirm"
	PPEConfirmed     = "Confirmed"
	PPENotConfirmed  = "Not confirmed"
	WorkTypeOther    = "Other"
)

// Catalog holds the immutable lookup tables a deployment validates against.
type Catalog struct {
	Regions        map[string][]string
	WorkTypes      []string
	ToolBoxTalks   []string
	ApproverEmails []string
}

// DefaultCatalog returns the standard region, work type and tool-box talk tables.
// Approver restrictions are opt-in.
func DefaultCatalog() Catalog {
	return Catalog{
		Regions: map[string][]string{
			"North": {"Delhi", "Punjab", "Haryana", "Uttar Pradesh", "Uttarakhand", "UP East", "UP West"},
			"South": {"Kerala", "Tamil Nadu", "Karnataka", "APTL", "RoTN", "Telangana", "Chennai"},
			"East":  {"West Bengal", "Bihar", "Odisha", "Jharkhand", "Assam", "CG", "NESA"},
			"West":  {"Maharashtra", "Gujarat", "Rajasthan", "MP", "Goa", "Mumbai"},
		},
		WorkTypes:    []string{"Work at Height", "Unprotected Roof", "Parapet Wall", "Electrical Work", "Night Work", WorkTypeOther},
		ToolBoxTalks: []string{"Site Hazards", "Emergency Procedures", "PPE Usage", "Tool Safety", "Fire Safety", "First Aid"},
	}
}

// WithApprovers returns a copy restricted to the given approver addresses.
func (c Catalog) WithApprovers(emails []string) Catalog {
	c.ApproverEmails = append([]string(nil), emails...)
	return c
}

// HasRegion reports whether region is known.
func (c Catalog) HasRegion(region string) bool {
	_, ok := c.Regions[region]
	return ok
}

// HasCircle reports whether circle belongs to region.
func (c Catalog) HasCircle(region, circle string) bool {
	return contains(c.Regions[region], circle)
}

// HasWorkType reports whether wt is a known work type.
func (c Catalog) HasWorkType(wt string) bool { return contains(c.WorkTypes, wt) }

// HasToolBoxTalk reports whether talk is a known tool-box talk.
func (c Catalog) HasToolBoxTalk(talk string) bool { return contains(c.ToolBoxTalks, talk) }

// ApproverAllowed reports whether email may approve. An empty list allows anyone.
func (c Catalog) ApproverAllowed(email string) bool {
	if len(c.ApproverEmails) == 0 {
		return true
	}
	for _, allowed := range c.ApproverEmails {
		if strings.EqualFold(allowed, strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
