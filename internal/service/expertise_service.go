package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/pkg/config"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type expertiseStore interface {
	Upsert(ctx context.Context, record *models.AttorneyExpertise) error
	Find(ctx context.Context, attorneyID, area string) (*models.AttorneyExpertise, error)
	ListByAttorney(ctx context.Context, attorneyID string) ([]models.AttorneyExpertise, error)
	ListByArea(ctx context.Context, area string, attorneyIDs []string) ([]models.AttorneyExpertise, error)
	RecordOutcome(ctx context.Context, exec sqlx.ExtContext, attorneyID, area string, successful bool, closedAt time.Time) (bool, error)
}

// ExpertiseService owns attorney expertise records and their scoring.
type ExpertiseService struct {
	repo      expertiseStore
	scoring   config.ScoringConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExpertiseService constructs the service. A zero scoring config falls back to the defaults.
func NewExpertiseService(repo expertiseStore, scoring config.ScoringConfig, validate *validator.Validate, logger *zap.Logger) *ExpertiseService {
	if scoring == (config.ScoringConfig{}) {
		scoring = config.DefaultScoring()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpertiseService{repo: repo, scoring: scoring, validator: validate, logger: logger}
}

// Score derives the 0..100 expertise score of a record. A nil record scores 0.
func (s *ExpertiseService) Score(record *models.AttorneyExpertise) float64 {
	if record == nil {
		return 0
	}
	var score float64
	switch record.ProficiencyLevel {
	case models.ProficiencyExpert:
		score = s.scoring.ExpertBase
	case models.ProficiencyAdvanced:
		score = s.scoring.AdvancedBase
	case models.ProficiencyIntermediate:
		score = s.scoring.IntermediateBase
	case models.ProficiencyBeginner:
		score = s.scoring.BeginnerBase
	}
	if record.YearsExperience > s.scoring.ExperienceYearsThreshold {
		score += s.scoring.ExperienceBonus
	}
	if record.SuccessRate > s.scoring.SuccessRateThreshold {
		score += s.scoring.SuccessBonus
	}
	switch {
	case score > 100:
		return 100
	case score < 0:
		return 0
	}
	return score
}

// ScoreFor returns the attorney's score in an area, 0 when no record exists.
func (s *ExpertiseService) ScoreFor(ctx context.Context, attorneyID, area string) (float64, error) {
	if strings.TrimSpace(area) == "" {
		return 0, nil
	}
	record, err := s.repo.Find(ctx, attorneyID, area)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expertise")
	}
	return s.Score(record), nil
}

// ScoresForArea scores several attorneys in one area. Attorneys without a record are absent from the map.
func (s *ExpertiseService) ScoresForArea(ctx context.Context, area string, attorneyIDs []string) (map[string]float64, error) {
	scores := make(map[string]float64, len(attorneyIDs))
	if strings.TrimSpace(area) == "" || len(attorneyIDs) == 0 {
		return scores, nil
	}
	records, err := s.repo.ListByArea(ctx, area, attorneyIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expertise")
	}
	for i := range records {
		scores[records[i].AttorneyID] = s.Score(&records[i])
	}
	return scores, nil
}

// List returns an attorney's records with their scores.
func (s *ExpertiseService) List(ctx context.Context, attorneyID string) ([]models.ExpertiseView, error) {
	records, err := s.repo.ListByAttorney(ctx, attorneyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expertise")
	}
	views := make([]models.ExpertiseView, 0, len(records))
	for i := range records {
		views = append(views, models.ExpertiseView{AttorneyExpertise: records[i], ExpertiseScore: s.Score(&records[i])})
	}
	return views, nil
}

// Upsert creates or replaces the attorney's record for one area. Counters not
// present in the request keep their stored values.
func (s *ExpertiseService) Upsert(ctx context.Context, attorneyID string, req dto.UpsertExpertiseRequest) (*models.ExpertiseView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid expertise payload")
	}
	if strings.TrimSpace(attorneyID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attorney id is required")
	}
	area := strings.TrimSpace(req.ExpertiseArea)

	record := &models.AttorneyExpertise{
		AttorneyID:       attorneyID,
		ExpertiseArea:    area,
		ProficiencyLevel: req.ProficiencyLevel,
		YearsExperience:  req.YearsExperience,
		LastCaseDate:     req.LastCaseDate,
	}
	existing, err := s.repo.Find(ctx, attorneyID, area)
	switch {
	case err == nil:
		record.ID = existing.ID
		record.ExpertiseArea = existing.ExpertiseArea
		record.CasesHandled = existing.CasesHandled
		record.SuccessRate = existing.SuccessRate
		if record.LastCaseDate == nil {
			record.LastCaseDate = existing.LastCaseDate
		}
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expertise")
	}
	if req.CasesHandled != nil {
		record.CasesHandled = *req.CasesHandled
	}
	if req.SuccessRate != nil {
		record.SuccessRate = *req.SuccessRate
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save expertise")
	}
	s.logger.Info("attorney expertise saved",
		zap.String("attorney_id", attorneyID),
		zap.String("expertise_area", record.ExpertiseArea),
		zap.String("proficiency_level", string(record.ProficiencyLevel)),
	)
	return &models.ExpertiseView{AttorneyExpertise: *record, ExpertiseScore: s.Score(record)}, nil
}

// RecordCaseOutcome folds a closed case into the attorney's area record. A
// missing record is not an error.
func (s *ExpertiseService) RecordCaseOutcome(ctx context.Context, exec sqlx.ExtContext, attorneyID, area string, successful bool, closedAt time.Time) error {
	if strings.TrimSpace(area) == "" {
		return nil
	}
	updated, err := s.repo.RecordOutcome(ctx, exec, attorneyID, area, successful, closedAt)
	if err != nil {
		return err
	}
	if !updated {
		s.logger.Debug("no expertise record for case outcome",
			zap.String("attorney_id", attorneyID),
			zap.String("expertise_area", area),
		)
	}
	return nil
}
