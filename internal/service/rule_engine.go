package service

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type activeRuleStore interface {
	ListActive(ctx context.Context, organizationID string) ([]models.AssignmentRule, error)
}

// RuleEngine picks the first active rule of an organization that matches a case.
type RuleEngine struct {
	repo    activeRuleStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRuleEngine constructs the engine.
func NewRuleEngine(repo activeRuleStore, metrics *MetricsService, logger *zap.Logger) *RuleEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleEngine{repo: repo, metrics: metrics, logger: logger}
}

// SelectRule returns the first matching rule in priority order, or nil when
// none matches. Rules whose conditions or actions cannot be evaluated are
// skipped.
func (e *RuleEngine) SelectRule(ctx context.Context, organizationID string, attrs models.CaseAttributes) (*models.RuleMatch, error) {
	rules, err := e.repo.ListActive(ctx, organizationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment rules")
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].PriorityOrder != rules[j].PriorityOrder {
			return rules[i].PriorityOrder < rules[j].PriorityOrder
		}
		return rules[i].ID < rules[j].ID
	})

	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		matched, actions, err := EvaluateRule(rule, attrs)
		if err != nil {
			e.logger.Warn("skipping assignment rule",
				zap.String("rule_id", rule.ID),
				zap.String("rule_name", rule.RuleName),
				zap.String("case_id", attrs.CaseID),
				zap.Error(err),
			)
			e.metrics.RecordRuleEvaluationError(rule.ID)
			continue
		}
		if matched {
			return &models.RuleMatch{Rule: rule, Actions: actions}, nil
		}
	}
	return nil, nil
}

// EvaluateRule checks one rule against a case. Actions are parsed only for a
// matching rule.
func EvaluateRule(rule models.AssignmentRule, attrs models.CaseAttributes) (bool, models.RuleActions, error) {
	if rule.CaseType != nil && strings.TrimSpace(*rule.CaseType) != "" &&
		!strings.EqualFold(strings.TrimSpace(*rule.CaseType), strings.TrimSpace(attrs.CaseType)) {
		return false, models.RuleActions{}, nil
	}
	conditions, err := ParseConditions(rule.RuleConditions)
	if err != nil {
		return false, models.RuleActions{}, err
	}
	if !conditions.Matches(attrs) {
		return false, models.RuleActions{}, nil
	}
	actions, err := ParseActions(rule.RuleActions)
	if err != nil {
		return false, models.RuleActions{}, err
	}
	return true, actions, nil
}
