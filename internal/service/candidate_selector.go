package service

import (
	"sort"

	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/pkg/config"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

// CandidateSelector ranks eligible attorneys for a case.
type CandidateSelector struct {
	expertiseWeight float64
	capacityWeight  float64
}

// NewCandidateSelector builds a selector from the scoring weights.
func NewCandidateSelector(scoring config.ScoringConfig) *CandidateSelector {
	if scoring.ExpertiseWeight == 0 && scoring.CapacityWeight == 0 {
		defaults := config.DefaultScoring()
		scoring.ExpertiseWeight = defaults.ExpertiseWeight
		scoring.CapacityWeight = defaults.CapacityWeight
	}
	return &CandidateSelector{expertiseWeight: scoring.ExpertiseWeight, capacityWeight: scoring.CapacityWeight}
}

// Rank filters the pool by the constraints, scores the survivors and orders
// them best first. Ties go to fewer active cases, then the lowest user id.
func (s *CandidateSelector) Rank(constraints models.SelectionConstraints, pool []models.Candidate) []models.Candidate {
	ranked := make([]models.Candidate, 0, len(pool))
	for _, c := range pool {
		if c.ExpertiseScore < constraints.MinExpertiseScore {
			continue
		}
		if c.CapacityPercentage > constraints.MaxWorkloadPercentage {
			continue
		}
		c.Score = s.expertiseWeight*c.ExpertiseScore + s.capacityWeight*(100-c.CapacityPercentage)
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ActiveCasesCount != b.ActiveCasesCount {
			return a.ActiveCasesCount < b.ActiveCasesCount
		}
		return a.UserID < b.UserID
	})
	return ranked
}

// SelectCandidate picks the attorney for a case. previous lists earlier
// attorneys of the matter, most recent first.
func (s *CandidateSelector) SelectCandidate(constraints models.SelectionConstraints, pool []models.Candidate, previous []string) (models.Candidate, error) {
	ranked := s.Rank(constraints, pool)
	if len(ranked) == 0 {
		return models.Candidate{}, appErrors.Clone(appErrors.ErrNoEligibleCandidate, "no attorney satisfies the rule constraints")
	}

	byUser := make(map[string]models.Candidate, len(ranked))
	for _, c := range ranked {
		byUser[c.UserID] = c
	}
	if constraints.AssignToUserID != nil {
		if c, ok := byUser[*constraints.AssignToUserID]; ok {
			return c, nil
		}
	}
	if constraints.PreferPreviousAttorney {
		for _, userID := range previous {
			if c, ok := byUser[userID]; ok {
				return c, nil
			}
		}
	}
	return ranked[0], nil
}
