package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// UserWorkload is the per-attorney snapshot for one calculation date.
type UserWorkload struct {
	ID                     string         `db:"id" json:"id"`
	UserID                 string         `db:"user_id" json:"userId"`
	CalculationDate        time.Time      `db:"calculation_date" json:"calculationDate"`
	ActiveCasesCount       int            `db:"active_cases_count" json:"activeCasesCount"`
	TotalWorkloadPoints    float64        `db:"total_workload_points" json:"totalWorkloadPoints"`
	CapacityPercentage     float64        `db:"capacity_percentage" json:"capacityPercentage"`
	MaxCapacityPoints      float64        `db:"max_capacity_points" json:"maxCapacityPoints"`
	BillableHoursWeek      float64        `db:"billable_hours_week" json:"billableHoursWeek"`
	OverdueTasksCount      int            `db:"overdue_tasks_count" json:"overdueTasksCount"`
	UpcomingDeadlinesCount int            `db:"upcoming_deadlines_count" json:"upcomingDeadlinesCount"`
	Details                types.JSONText `db:"details" json:"details" swaggertype:"object"`
	LastCalculatedAt       time.Time      `db:"last_calculated_at" json:"lastCalculatedAt"`
}

// RecalculationSummary reports one organization-wide recalculation pass.
type RecalculationSummary struct {
	OrganizationID string        `json:"organizationId"`
	Attorneys      int           `json:"attorneys"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

// RecalculationRun reports one scheduled pass of the workload job.
type RecalculationRun struct {
	StartedAt     time.Time              `json:"startedAt"`
	Skipped       bool                   `json:"skipped"`
	Expired       int                    `json:"expired"`
	Organizations []RecalculationSummary `json:"organizations,omitempty"`
}
