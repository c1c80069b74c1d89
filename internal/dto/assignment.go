package dto

import (
	"time"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// AssignCaseRequest assigns a case. A UserID selects the manual path; without it
// the rule engine and candidate selector decide.
type AssignCaseRequest struct {
	RoleType       models.RoleType       `json:"roleType" validate:"omitempty,oneof=LEAD_ATTORNEY ASSOCIATE PARALEGAL REVIEWER"`
	AssignmentType models.AssignmentType `json:"assignmentType" validate:"omitempty,oneof=MANUAL AUTOMATIC RULE_BASED"`
	UserID         *string               `json:"userId" validate:"omitempty,uuid"`
	EffectiveFrom  *time.Time            `json:"effectiveFrom"`
	EffectiveTo    *time.Time            `json:"effectiveTo"`
	WorkloadWeight *float64              `json:"workloadWeight" validate:"omitempty,gt=0,lte=100"`
	Notes          *string               `json:"notes" validate:"omitempty,max=2000"`
}

// ReassignCaseRequest replaces the current assignee of a role.
type ReassignCaseRequest struct {
	RoleType  models.RoleType `json:"roleType" validate:"omitempty,oneof=LEAD_ATTORNEY ASSOCIATE PARALEGAL REVIEWER"`
	NewUserID *string         `json:"newUserId" validate:"omitempty,uuid"`
	Reason    string          `json:"reason" validate:"required,max=2000"`
}

// ReleaseCaseRequest closes out every active assignment of a case.
type ReleaseCaseRequest struct {
	Reason     string `json:"reason" validate:"required,max=2000"`
	Successful *bool  `json:"successful"`
}

// DeactivateAssignmentRequest ends one assignment.
type DeactivateAssignmentRequest struct {
	ReasonCode models.HistoryAction `json:"reasonCode" validate:"required,oneof=REMOVED EXPIRED"`
	Reason     string               `json:"reason" validate:"max=2000"`
}

// HistoryExportRequest asks for a rendered history file.
type HistoryExportRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=csv pdf CSV PDF"`
}

// HistoryExportResult points to a rendered history export.
type HistoryExportResult struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expiresAt"`
}
