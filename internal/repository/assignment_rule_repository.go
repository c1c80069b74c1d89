package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

const assignmentRuleColumns = `id, organization_id, rule_name, rule_type, case_type, priority_order, active,
       max_workload_percentage, min_expertise_score, prefer_previous_attorney, rule_conditions, rule_actions,
       created_at, updated_at`

// AssignmentRuleRepository persists assignment rules.
type AssignmentRuleRepository struct {
	db *sqlx.DB
}

// NewAssignmentRuleRepository constructs the repository.
func NewAssignmentRuleRepository(db *sqlx.DB) *AssignmentRuleRepository {
	return &AssignmentRuleRepository{db: db}
}

// ListActive returns the organization's active rules in evaluation order.
func (r *AssignmentRuleRepository) ListActive(ctx context.Context, organizationID string) ([]models.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + `
	FROM assignment_rules
	WHERE organization_id = $1 AND active = TRUE
	ORDER BY priority_order ASC, id ASC`
	var rules []models.AssignmentRule
	if err := r.db.SelectContext(ctx, &rules, query, organizationID); err != nil {
		return nil, fmt.Errorf("list active assignment rules: %w", err)
	}
	return rules, nil
}

// List returns rules for administration.
func (r *AssignmentRuleRepository) List(ctx context.Context, filter models.AssignmentRuleFilter) ([]models.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + `
	FROM assignment_rules
	WHERE organization_id = $1 AND ($2 OR active = TRUE)
	ORDER BY priority_order ASC, id ASC`
	var rules []models.AssignmentRule
	if err := r.db.SelectContext(ctx, &rules, query, filter.OrganizationID, filter.IncludeInactive); err != nil {
		return nil, fmt.Errorf("list assignment rules: %w", err)
	}
	return rules, nil
}

// FindByID fetches a rule.
func (r *AssignmentRuleRepository) FindByID(ctx context.Context, id string) (*models.AssignmentRule, error) {
	query := `SELECT ` + assignmentRuleColumns + ` FROM assignment_rules WHERE id = $1`
	var rule models.AssignmentRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create inserts a rule.
func (r *AssignmentRuleRepository) Create(ctx context.Context, rule *models.AssignmentRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	normaliseRuleMaps(rule)
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	const query = `INSERT INTO assignment_rules
	(id, organization_id, rule_name, rule_type, case_type, priority_order, active, max_workload_percentage,
	 min_expertise_score, prefer_previous_attorney, rule_conditions, rule_actions, created_at, updated_at)
	VALUES (:id, :organization_id, :rule_name, :rule_type, :case_type, :priority_order, :active, :max_workload_percentage,
	 :min_expertise_score, :prefer_previous_attorney, :rule_conditions, :rule_actions, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create assignment rule: %w", err)
	}
	return nil
}

// Update replaces the editable columns of a rule.
func (r *AssignmentRuleRepository) Update(ctx context.Context, rule *models.AssignmentRule) error {
	normaliseRuleMaps(rule)
	rule.UpdatedAt = time.Now().UTC()

	const query = `UPDATE assignment_rules SET
	rule_name = :rule_name, rule_type = :rule_type, case_type = :case_type, priority_order = :priority_order,
	max_workload_percentage = :max_workload_percentage, min_expertise_score = :min_expertise_score,
	prefer_previous_attorney = :prefer_previous_attorney, rule_conditions = :rule_conditions,
	rule_actions = :rule_actions, updated_at = :updated_at
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("update assignment rule: %w", err)
	}
	return requireAffected(result, "update assignment rule")
}

// Deactivate soft-deletes a rule.
func (r *AssignmentRuleRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE assignment_rules SET active = FALSE, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivate assignment rule: %w", err)
	}
	return requireAffected(result, "deactivate assignment rule")
}

func normaliseRuleMaps(rule *models.AssignmentRule) {
	if len(rule.RuleConditions) == 0 {
		rule.RuleConditions = types.JSONText(`{}`)
	}
	if len(rule.RuleActions) == 0 {
		rule.RuleActions = types.JSONText(`{}`)
	}
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
