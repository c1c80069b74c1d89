package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// RuleType classifies an assignment rule for administrators.
type RuleType string

const (
	RuleTypeExpertiseBased    RuleType = "EXPERTISE_BASED"
	RuleTypeWorkloadBalanced  RuleType = "WORKLOAD_BALANCED"
	RuleTypePreferredAttorney RuleType = "PREFERRED_ATTORNEY"
	RuleTypeCustom            RuleType = "CUSTOM"
)

// AssignmentRule configures automatic assignment for an organization. A nil
// CaseType matches every case type.
type AssignmentRule struct {
	ID                     string         `db:"id" json:"id"`
	OrganizationID         string         `db:"organization_id" json:"organizationId"`
	RuleName               string         `db:"rule_name" json:"ruleName"`
	RuleType               RuleType       `db:"rule_type" json:"ruleType"`
	CaseType               *string        `db:"case_type" json:"caseType,omitempty"`
	PriorityOrder          int            `db:"priority_order" json:"priorityOrder"`
	Active                 bool           `db:"active" json:"active"`
	MaxWorkloadPercentage  float64        `db:"max_workload_percentage" json:"maxWorkloadPercentage"`
	MinExpertiseScore      float64        `db:"min_expertise_score" json:"minExpertiseScore"`
	PreferPreviousAttorney bool           `db:"prefer_previous_attorney" json:"preferPreviousAttorney"`
	RuleConditions         types.JSONText `db:"rule_conditions" json:"ruleConditions" swaggertype:"object"`
	RuleActions            types.JSONText `db:"rule_actions" json:"ruleActions" swaggertype:"object"`
	CreatedAt              time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updatedAt"`
}

// AssignmentRuleFilter constrains rule listing.
type AssignmentRuleFilter struct {
	OrganizationID  string
	IncludeInactive bool
}

// RuleActions are the typed effects a matched rule applies to the new assignment.
type RuleActions struct {
	WorkloadWeight *float64 `json:"workloadWeight,omitempty"`
	RoleType       *string  `json:"roleType,omitempty"`
	AssignToUserID *string  `json:"assignToUserId,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
}

// RuleMatch is the outcome of rule selection.
type RuleMatch struct {
	Rule    AssignmentRule `json:"rule"`
	Actions RuleActions    `json:"actions"`
}
