package dto

import (
	"encoding/json"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// UpsertRuleRequest creates or replaces an assignment rule.
type UpsertRuleRequest struct {
	RuleName               string          `json:"ruleName" validate:"required,max=200"`
	RuleType               models.RuleType `json:"ruleType" validate:"required,oneof=EXPERTISE_BASED WORKLOAD_BALANCED PREFERRED_ATTORNEY CUSTOM"`
	CaseType               *string         `json:"caseType" validate:"omitempty,max=100"`
	PriorityOrder          int             `json:"priorityOrder" validate:"gte=0"`
	MaxWorkloadPercentage  *float64        `json:"maxWorkloadPercentage" validate:"omitempty,gte=0,lte=1000"`
	MinExpertiseScore      float64         `json:"minExpertiseScore" validate:"gte=0,lte=100"`
	PreferPreviousAttorney bool            `json:"preferPreviousAttorney"`
	RuleConditions         json.RawMessage `json:"ruleConditions" swaggertype:"object"`
	RuleActions            json.RawMessage `json:"ruleActions" swaggertype:"object"`
}

// EvaluateRuleRequest dry-runs rule selection and candidate ranking for a case.
type EvaluateRuleRequest struct {
	CaseID string `json:"caseId" validate:"required,uuid"`
}

// EvaluateRuleResult reports what automatic assignment would do for a case.
type EvaluateRuleResult struct {
	CaseID    string             `json:"caseId"`
	Matched   bool               `json:"matched"`
	Match     *models.RuleMatch  `json:"match,omitempty"`
	Candidate *models.Candidate  `json:"candidate,omitempty"`
	Pool      []models.Candidate `json:"pool,omitempty"`
	Warning   string             `json:"warning,omitempty"`
}
