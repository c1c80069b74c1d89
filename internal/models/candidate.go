package models

// Candidate is an attorney in the selection pool with the inputs used to rank them.
type Candidate struct {
	UserID             string  `json:"userId"`
	ExpertiseScore     float64 `json:"expertiseScore"`
	CapacityPercentage float64 `json:"capacityPercentage"`
	ActiveCasesCount   int     `json:"activeCasesCount"`
	Score              float64 `json:"score"`
}

// SelectionConstraints are the rule-derived limits applied to the pool.
type SelectionConstraints struct {
	MaxWorkloadPercentage  float64
	MinExpertiseScore      float64
	PreferPreviousAttorney bool
	AssignToUserID         *string
}

// AssignmentOutcome is the result of assignCase. When Assigned is false no
// attorney was picked and Warning explains why.
type AssignmentOutcome struct {
	Assignment *CaseAssignment `json:"assignment,omitempty"`
	Previous   *CaseAssignment `json:"previous,omitempty"`
	Assigned   bool            `json:"assigned"`
	Warning    string          `json:"warning,omitempty"`
	RuleID     *string         `json:"ruleId,omitempty"`
	Candidate  *Candidate      `json:"candidate,omitempty"`
}
