package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

var ruleColumns = []string{"id", "organization_id", "rule_name", "rule_type", "case_type", "priority_order", "active",
	"max_workload_percentage", "min_expertise_score", "prefer_previous_attorney", "rule_conditions", "rule_actions",
	"created_at", "updated_at"}

func TestAssignmentRuleRepositoryListActiveOrdersByPriority(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRuleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(ruleColumns).
		AddRow("rule-1", "org-1", "PI high priority", "EXPERTISE_BASED", "PERSONAL_INJURY", 1, true, 80.0, 60.0, false, `{"priority":"HIGH"}`, `{}`, now, now).
		AddRow("rule-2", "org-1", "Fallback", "WORKLOAD_BALANCED", nil, 10, true, 90.0, 0.0, true, `{}`, `{"workloadWeight":1.5}`, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY priority_order ASC, id ASC")).
		WithArgs("org-1").
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "PERSONAL_INJURY", *rules[0].CaseType)
	assert.Nil(t, rules[1].CaseType)
	assert.JSONEq(t, `{"priority":"HIGH"}`, string(rules[0].RuleConditions))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRuleRepositoryCreateDefaultsMaps(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRuleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO assignment_rules")).WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.AssignmentRule{OrganizationID: "org-1", RuleName: "Any", RuleType: models.RuleTypeCustom, Active: true}
	require.NoError(t, repo.Create(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "{}", string(rule.RuleConditions))
	assert.Equal(t, "{}", string(rule.RuleActions))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRuleRepositoryDeactivateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRuleRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignment_rules SET active = FALSE")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
