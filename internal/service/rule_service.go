package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type ruleAdminStore interface {
	List(ctx context.Context, filter models.AssignmentRuleFilter) ([]models.AssignmentRule, error)
	FindByID(ctx context.Context, id string) (*models.AssignmentRule, error)
	Create(ctx context.Context, rule *models.AssignmentRule) error
	Update(ctx context.Context, rule *models.AssignmentRule) error
	Deactivate(ctx context.Context, id string) error
}

const defaultMaxWorkloadPercentage = 100

// RuleService administers an organization's assignment rules. Rules are never hard-deleted.
type RuleService struct {
	repo      ruleAdminStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRuleService constructs the service.
func NewRuleService(repo ruleAdminStore, validate *validator.Validate, logger *zap.Logger) *RuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, validator: validate, logger: logger}
}

// List returns the organization's rules in evaluation order.
func (s *RuleService) List(ctx context.Context, organizationID string, includeInactive bool) ([]models.AssignmentRule, error) {
	rules, err := s.repo.List(ctx, models.AssignmentRuleFilter{OrganizationID: organizationID, IncludeInactive: includeInactive})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignment rules")
	}
	return rules, nil
}

// Get returns a rule of the organization.
func (s *RuleService) Get(ctx context.Context, organizationID, id string) (*models.AssignmentRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment rule")
	}
	if rule.OrganizationID != organizationID {
		return nil, appErrors.ErrNotFound
	}
	return rule, nil
}

// Create validates and stores a new active rule.
func (s *RuleService) Create(ctx context.Context, organizationID string, req dto.UpsertRuleRequest) (*models.AssignmentRule, error) {
	rule := &models.AssignmentRule{OrganizationID: organizationID, Active: true}
	if err := s.apply(rule, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment rule")
	}
	s.logger.Info("assignment rule created",
		zap.String("rule_id", rule.ID),
		zap.String("organization_id", organizationID),
		zap.Int("priority_order", rule.PriorityOrder),
	)
	return rule, nil
}

// Update replaces the editable fields of a rule.
func (s *RuleService) Update(ctx context.Context, organizationID, id string, req dto.UpsertRuleRequest) (*models.AssignmentRule, error) {
	rule, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(rule, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment rule")
	}
	s.logger.Info("assignment rule updated", zap.String("rule_id", rule.ID))
	return rule, nil
}

// Deactivate soft-deletes a rule so it no longer takes part in selection.
func (s *RuleService) Deactivate(ctx context.Context, organizationID, id string) (*models.AssignmentRule, error) {
	rule, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if !rule.Active {
		return rule, nil
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate assignment rule")
	}
	rule.Active = false
	s.logger.Info("assignment rule deactivated", zap.String("rule_id", rule.ID))
	return rule, nil
}

func (s *RuleService) apply(rule *models.AssignmentRule, req dto.UpsertRuleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment rule payload")
	}
	conditions := normaliseJSONMap(req.RuleConditions)
	actions := normaliseJSONMap(req.RuleActions)
	if _, err := ParseConditions(conditions); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule conditions: "+appErrors.FromError(err).Message)
	}
	if _, err := ParseActions(actions); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rule actions: "+appErrors.FromError(err).Message)
	}

	rule.RuleName = strings.TrimSpace(req.RuleName)
	rule.RuleType = req.RuleType
	rule.CaseType = nil
	if req.CaseType != nil && strings.TrimSpace(*req.CaseType) != "" {
		caseType := strings.TrimSpace(*req.CaseType)
		rule.CaseType = &caseType
	}
	rule.PriorityOrder = req.PriorityOrder
	rule.MaxWorkloadPercentage = defaultMaxWorkloadPercentage
	if req.MaxWorkloadPercentage != nil {
		rule.MaxWorkloadPercentage = *req.MaxWorkloadPercentage
	}
	rule.MinExpertiseScore = req.MinExpertiseScore
	rule.PreferPreviousAttorney = req.PreferPreviousAttorney
	rule.RuleConditions = types.JSONText(conditions)
	rule.RuleActions = types.JSONText(actions)
	return nil
}

func normaliseJSONMap(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte(`{}`)
	}
	return append([]byte(nil), trimmed...)
}
