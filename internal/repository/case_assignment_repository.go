package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// ActiveAssignmentIndex is the partial unique index guarding one active row per (case, role).
const ActiveAssignmentIndex = "uq_case_assignments_active_role"

const caseAssignmentColumns = `id, case_id, user_id, role_type, assignment_type, rule_id, assigned_by, assigned_at,
       effective_from, effective_to, active, workload_weight, expertise_match_score, notes`

// CaseAssignmentRepository persists case assignments. Writes take an executor so
// they can join the caller's transaction.
type CaseAssignmentRepository struct {
	db *sqlx.DB
}

// NewCaseAssignmentRepository constructs the repository.
func NewCaseAssignmentRepository(db *sqlx.DB) *CaseAssignmentRepository {
	return &CaseAssignmentRepository{db: db}
}

func (r *CaseAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LockCase takes a transaction-scoped advisory lock keyed by the case id. It
// serialises every transition of one case, including ones that find no row to lock.
func (r *CaseAssignmentRepository) LockCase(ctx context.Context, exec sqlx.ExtContext, caseID string) error {
	const query = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`
	if _, err := r.exec(exec).ExecContext(ctx, query, caseID); err != nil {
		return fmt.Errorf("lock case %s: %w", caseID, err)
	}
	return nil
}

// ListActiveForUpdate row-locks the active assignments of a case role.
func (r *CaseAssignmentRepository) ListActiveForUpdate(ctx context.Context, exec sqlx.ExtContext, caseID string, role models.RoleType) ([]models.CaseAssignment, error) {
	query := `SELECT ` + caseAssignmentColumns + `
	FROM case_assignments
	WHERE case_id = $1 AND role_type = $2 AND active = TRUE
	ORDER BY effective_from ASC
	FOR UPDATE`
	var assignments []models.CaseAssignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, caseID, role); err != nil {
		return nil, fmt.Errorf("list active assignments for update: %w", err)
	}
	return assignments, nil
}

// FindByID fetches an assignment.
func (r *CaseAssignmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseAssignment, error) {
	query := `SELECT ` + caseAssignmentColumns + ` FROM case_assignments WHERE id = $1`
	var assignment models.CaseAssignment
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListActiveByCase returns every active assignment of a case.
func (r *CaseAssignmentRepository) ListActiveByCase(ctx context.Context, exec sqlx.ExtContext, caseID string) ([]models.CaseAssignment, error) {
	query := `SELECT ` + caseAssignmentColumns + `
	FROM case_assignments
	WHERE case_id = $1 AND active = TRUE
	ORDER BY role_type ASC, effective_from ASC`
	var assignments []models.CaseAssignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, caseID); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return assignments, nil
}

// Create inserts an assignment row.
func (r *CaseAssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.CaseAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	if assignment.EffectiveFrom.IsZero() {
		assignment.EffectiveFrom = assignment.AssignedAt
	}

	const query = `INSERT INTO case_assignments
	(id, case_id, user_id, role_type, assignment_type, rule_id, assigned_by, assigned_at, effective_from, effective_to,
	 active, workload_weight, expertise_match_score, notes)
	VALUES (:id, :case_id, :user_id, :role_type, :assignment_type, :rule_id, :assigned_by, :assigned_at, :effective_from, :effective_to,
	 :active, :workload_weight, :expertise_match_score, :notes)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("create case assignment: %w", err)
	}
	return nil
}

// Deactivate ends an active assignment at the given instant. It reports false
// when the row was already inactive.
func (r *CaseAssignmentRepository) Deactivate(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error) {
	const query = `UPDATE case_assignments
	SET active = FALSE, effective_to = CASE WHEN effective_to IS NULL OR effective_to > $2 THEN $2 ELSE effective_to END
	WHERE id = $1 AND active = TRUE`
	result, err := r.exec(exec).ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("deactivate case assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate case assignment rows: %w", err)
	}
	return rows > 0, nil
}

// ListPreviousAttorneys returns attorneys who held this case, or another case of
// the same client and case type, most recent first.
func (r *CaseAssignmentRepository) ListPreviousAttorneys(ctx context.Context, caseID string, clientID *string, caseType string) ([]models.PreviousAttorney, error) {
	const query = `SELECT ca.user_id, MAX(ca.assigned_at) AS assigned_at
	FROM case_assignments ca
	JOIN cases c ON c.id = ca.case_id
	WHERE ca.case_id = $1
	   OR ($2::uuid IS NOT NULL AND c.client_id = $2::uuid AND LOWER(c.case_type) = LOWER($3))
	GROUP BY ca.user_id
	ORDER BY assigned_at DESC, ca.user_id ASC`
	var previous []models.PreviousAttorney
	if err := r.db.SelectContext(ctx, &previous, query, caseID, clientID, caseType); err != nil {
		return nil, fmt.Errorf("list previous attorneys: %w", err)
	}
	return previous, nil
}

// ListActiveCaseWeights returns (case, weight) pairs for an attorney's in-force
// assignments on open cases.
func (r *CaseAssignmentRepository) ListActiveCaseWeights(ctx context.Context, userID string, asOf time.Time) ([]models.CaseWeight, error) {
	const query = `SELECT ca.case_id, ca.workload_weight
	FROM case_assignments ca
	JOIN cases c ON c.id = ca.case_id
	WHERE ca.user_id = $1
	  AND ca.active = TRUE
	  AND ca.effective_from <= $2
	  AND (ca.effective_to IS NULL OR ca.effective_to > $2)
	  AND c.status NOT IN ('CLOSED', 'ARCHIVED')
	ORDER BY ca.case_id`
	var weights []models.CaseWeight
	if err := r.db.SelectContext(ctx, &weights, query, userID, asOf); err != nil {
		return nil, fmt.Errorf("list active case weights: %w", err)
	}
	return weights, nil
}

// ListLapsed returns active assignments whose window ended at or before asOf.
func (r *CaseAssignmentRepository) ListLapsed(ctx context.Context, asOf time.Time, limit int) ([]models.CaseAssignment, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + caseAssignmentColumns + `
	FROM case_assignments
	WHERE active = TRUE AND effective_to IS NOT NULL AND effective_to <= $1
	ORDER BY effective_to ASC
	LIMIT $2`
	var assignments []models.CaseAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, asOf, limit); err != nil {
		return nil, fmt.Errorf("list lapsed assignments: %w", err)
	}
	return assignments, nil
}
