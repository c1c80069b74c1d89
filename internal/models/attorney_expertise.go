package models

import "time"

// ProficiencyLevel grades an attorney in an expertise area.
type ProficiencyLevel string

const (
	ProficiencyBeginner     ProficiencyLevel = "BEGINNER"
	ProficiencyIntermediate ProficiencyLevel = "INTERMEDIATE"
	ProficiencyAdvanced     ProficiencyLevel = "ADVANCED"
	ProficiencyExpert       ProficiencyLevel = "EXPERT"
)

// AttorneyExpertise is unique per (attorney, expertise area).
type AttorneyExpertise struct {
	ID               string           `db:"id" json:"id"`
	AttorneyID       string           `db:"attorney_id" json:"attorneyId"`
	ExpertiseArea    string           `db:"expertise_area" json:"expertiseArea"`
	ProficiencyLevel ProficiencyLevel `db:"proficiency_level" json:"proficiencyLevel"`
	YearsExperience  int              `db:"years_experience" json:"yearsExperience"`
	CasesHandled     int              `db:"cases_handled" json:"casesHandled"`
	SuccessRate      float64          `db:"success_rate" json:"successRate"`
	LastCaseDate     *time.Time       `db:"last_case_date" json:"lastCaseDate,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

// ExpertiseView decorates a record with its derived score.
type ExpertiseView struct {
	AttorneyExpertise
	ExpertiseScore float64 `json:"expertiseScore"`
}
