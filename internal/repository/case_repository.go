package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// CaseRepository reads the case-management system's tables. The engine never writes them.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository constructs the repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// GetCaseAttributes returns the attributes rules are evaluated against.
func (r *CaseRepository) GetCaseAttributes(ctx context.Context, caseID string) (*models.CaseAttributes, error) {
	const query = `SELECT id, organization_id, case_type, priority, client_id, practice_area, status, custom_fields
	FROM cases WHERE id = $1`
	var attrs models.CaseAttributes
	if err := r.db.GetContext(ctx, &attrs, query, caseID); err != nil {
		return nil, err
	}
	custom, err := flattenCustomFields(attrs.CustomFields)
	if err != nil {
		return nil, fmt.Errorf("decode custom fields of case %s: %w", caseID, err)
	}
	attrs.Custom = custom
	return &attrs, nil
}

// ListActiveAttorneys returns active attorneys of an organization. A non-empty
// practice area keeps only attorneys with an expertise record in that area.
func (r *CaseRepository) ListActiveAttorneys(ctx context.Context, organizationID, practiceArea string) ([]string, error) {
	const query = `SELECT u.id
	FROM users u
	WHERE u.organization_id = $1
	  AND u.active = TRUE
	  AND u.role = 'ATTORNEY'
	  AND ($2 = '' OR EXISTS (
		SELECT 1 FROM attorney_expertise ae
		WHERE ae.attorney_id = u.id AND LOWER(ae.expertise_area) = LOWER($2)
	  ))
	ORDER BY u.id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, organizationID, practiceArea); err != nil {
		return nil, fmt.Errorf("list active attorneys: %w", err)
	}
	return ids, nil
}

// AttorneyOrganization returns the organization an attorney belongs to.
func (r *CaseRepository) AttorneyOrganization(ctx context.Context, attorneyID string) (string, error) {
	const query = `SELECT organization_id FROM users WHERE id = $1 AND role = 'ATTORNEY'`
	var organizationID string
	if err := r.db.GetContext(ctx, &organizationID, query, attorneyID); err != nil {
		return "", err
	}
	return organizationID, nil
}

// ListOrganizationIDs returns every organization with at least one active attorney.
func (r *CaseRepository) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT organization_id FROM users WHERE active = TRUE AND role = 'ATTORNEY' ORDER BY organization_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return ids, nil
}

// AttorneyActivity summarises overdue tasks, deadlines due within seven days and
// billable hours logged over the trailing seven days.
func (r *CaseRepository) AttorneyActivity(ctx context.Context, attorneyID string, asOf time.Time) (*models.AttorneyActivity, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM case_tasks t
	  WHERE t.assignee_id = $1 AND t.completed_at IS NULL AND t.due_date < $2) AS overdue_tasks_count,
	(SELECT COUNT(*) FROM case_tasks t
	  WHERE t.assignee_id = $1 AND t.completed_at IS NULL AND t.due_date >= $2 AND t.due_date < $2 + INTERVAL '7 days') AS upcoming_deadlines_count,
	(SELECT COALESCE(SUM(e.hours), 0) FROM time_entries e
	  WHERE e.user_id = $1 AND e.billable = TRUE AND e.entry_date > ($2::date - 7) AND e.entry_date <= $2::date) AS billable_hours_week`
	var activity models.AttorneyActivity
	if err := r.db.GetContext(ctx, &activity, query, attorneyID, asOf); err != nil {
		return nil, fmt.Errorf("load attorney activity: %w", err)
	}
	return &activity, nil
}

func flattenCustomFields(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(decoded))
	for key, value := range decoded {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			out[key] = v
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			out[key] = string(encoded)
		}
	}
	return out, nil
}
