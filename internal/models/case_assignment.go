package models

import "time"

// RoleType is the role an attorney plays on a case.
type RoleType string

const (
	RoleTypeLeadAttorney RoleType = "LEAD_ATTORNEY"
	RoleTypeAssociate    RoleType = "ASSOCIATE"
	RoleTypeParalegal    RoleType = "PARALEGAL"
	RoleTypeReviewer     RoleType = "REVIEWER"
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	switch r {
	case RoleTypeLeadAttorney, RoleTypeAssociate, RoleTypeParalegal, RoleTypeReviewer:
		return true
	}
	return false
}

// AssignmentType records how an assignment was decided.
type AssignmentType string

const (
	AssignmentTypeManual    AssignmentType = "MANUAL"
	AssignmentTypeAutomatic AssignmentType = "AUTOMATIC"
	AssignmentTypeRuleBased AssignmentType = "RULE_BASED"
)

// CaseAssignment links an attorney to a case role for an effective window.
// At most one active row exists per (case, role).
type CaseAssignment struct {
	ID                  string         `db:"id" json:"id"`
	CaseID              string         `db:"case_id" json:"caseId"`
	UserID              string         `db:"user_id" json:"userId"`
	RoleType            RoleType       `db:"role_type" json:"roleType"`
	AssignmentType      AssignmentType `db:"assignment_type" json:"assignmentType"`
	RuleID              *string        `db:"rule_id" json:"ruleId,omitempty"`
	AssignedBy          *string        `db:"assigned_by" json:"assignedBy,omitempty"`
	AssignedAt          time.Time      `db:"assigned_at" json:"assignedAt"`
	EffectiveFrom       time.Time      `db:"effective_from" json:"effectiveFrom"`
	EffectiveTo         *time.Time     `db:"effective_to" json:"effectiveTo,omitempty"`
	Active              bool           `db:"active" json:"active"`
	WorkloadWeight      float64        `db:"workload_weight" json:"workloadWeight"`
	ExpertiseMatchScore *float64       `db:"expertise_match_score" json:"expertiseMatchScore,omitempty"`
	Notes               *string        `db:"notes" json:"notes,omitempty"`
}

// OverlapsFrom reports whether the assignment is still in force at or after from.
func (a CaseAssignment) OverlapsFrom(from time.Time) bool {
	return a.Active && (a.EffectiveTo == nil || a.EffectiveTo.After(from))
}

// CaseWeight is one (case, weight) pair of an attorney's active load.
type CaseWeight struct {
	CaseID string  `db:"case_id"`
	Weight float64 `db:"workload_weight"`
}

// PreviousAttorney is an attorney who earlier held a case of the same matter.
type PreviousAttorney struct {
	UserID     string    `db:"user_id"`
	AssignedAt time.Time `db:"assigned_at"`
}
