package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

const workloadColumns = `id, user_id, calculation_date, active_cases_count, total_workload_points, capacity_percentage,
       max_capacity_points, billable_hours_week, overdue_tasks_count, upcoming_deadlines_count, details, last_calculated_at`

// WorkloadRepository persists per-day workload snapshots.
type WorkloadRepository struct {
	db *sqlx.DB
}

// NewWorkloadRepository constructs the repository.
func NewWorkloadRepository(db *sqlx.DB) *WorkloadRepository {
	return &WorkloadRepository{db: db}
}

// Upsert writes the snapshot for (user, calculation date), overwriting any earlier run of the same day.
func (r *WorkloadRepository) Upsert(ctx context.Context, snapshot *models.UserWorkload) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if len(snapshot.Details) == 0 {
		snapshot.Details = types.JSONText(`{}`)
	}
	const query = `INSERT INTO user_workloads
	(id, user_id, calculation_date, active_cases_count, total_workload_points, capacity_percentage, max_capacity_points,
	 billable_hours_week, overdue_tasks_count, upcoming_deadlines_count, details, last_calculated_at)
	VALUES (:id, :user_id, :calculation_date, :active_cases_count, :total_workload_points, :capacity_percentage, :max_capacity_points,
	 :billable_hours_week, :overdue_tasks_count, :upcoming_deadlines_count, :details, :last_calculated_at)
	ON CONFLICT (user_id, calculation_date) DO UPDATE SET
		active_cases_count = EXCLUDED.active_cases_count,
		total_workload_points = EXCLUDED.total_workload_points,
		capacity_percentage = EXCLUDED.capacity_percentage,
		max_capacity_points = EXCLUDED.max_capacity_points,
		billable_hours_week = EXCLUDED.billable_hours_week,
		overdue_tasks_count = EXCLUDED.overdue_tasks_count,
		upcoming_deadlines_count = EXCLUDED.upcoming_deadlines_count,
		details = EXCLUDED.details,
		last_calculated_at = EXCLUDED.last_calculated_at
	RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, snapshot)
	if err != nil {
		return fmt.Errorf("upsert user workload: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&snapshot.ID); err != nil {
			return fmt.Errorf("scan user workload id: %w", err)
		}
	}
	return rows.Err()
}

// Latest returns the most recent snapshot of a user.
func (r *WorkloadRepository) Latest(ctx context.Context, userID string) (*models.UserWorkload, error) {
	query := `SELECT ` + workloadColumns + `
	FROM user_workloads WHERE user_id = $1
	ORDER BY calculation_date DESC, last_calculated_at DESC
	LIMIT 1`
	var snapshot models.UserWorkload
	if err := r.db.GetContext(ctx, &snapshot, query, userID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LatestByUsers returns the most recent snapshot of each listed user that has one.
func (r *WorkloadRepository) LatestByUsers(ctx context.Context, userIDs []string) ([]models.UserWorkload, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT ON (user_id) ` + workloadColumns + `
	FROM user_workloads WHERE user_id = ANY($1)
	ORDER BY user_id, calculation_date DESC, last_calculated_at DESC`
	var snapshots []models.UserWorkload
	if err := r.db.SelectContext(ctx, &snapshots, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("list latest workloads: %w", err)
	}
	return snapshots, nil
}
