package dto

import (
	"time"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// UpsertExpertiseRequest sets an attorney's proficiency in one area.
type UpsertExpertiseRequest struct {
	ExpertiseArea    string                  `json:"expertiseArea" validate:"required,max=100"`
	ProficiencyLevel models.ProficiencyLevel `json:"proficiencyLevel" validate:"required,oneof=BEGINNER INTERMEDIATE ADVANCED EXPERT"`
	YearsExperience  int                     `json:"yearsExperience" validate:"gte=0,lte=80"`
	CasesHandled     *int                    `json:"casesHandled" validate:"omitempty,gte=0"`
	SuccessRate      *float64                `json:"successRate" validate:"omitempty,gte=0,lte=100"`
	LastCaseDate     *time.Time              `json:"lastCaseDate"`
}
