package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

const attorneyExpertiseColumns = `id, attorney_id, expertise_area, proficiency_level, years_experience, cases_handled,
       success_rate, last_case_date, created_at, updated_at`

// AttorneyExpertiseRepository persists per-area proficiency records.
type AttorneyExpertiseRepository struct {
	db *sqlx.DB
}

// NewAttorneyExpertiseRepository constructs the repository.
func NewAttorneyExpertiseRepository(db *sqlx.DB) *AttorneyExpertiseRepository {
	return &AttorneyExpertiseRepository{db: db}
}

func (r *AttorneyExpertiseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Upsert inserts or replaces the record for (attorney, area).
func (r *AttorneyExpertiseRepository) Upsert(ctx context.Context, record *models.AttorneyExpertise) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	const query = `INSERT INTO attorney_expertise
	(id, attorney_id, expertise_area, proficiency_level, years_experience, cases_handled, success_rate, last_case_date, created_at, updated_at)
	VALUES (:id, :attorney_id, :expertise_area, :proficiency_level, :years_experience, :cases_handled, :success_rate, :last_case_date, :created_at, :updated_at)
	ON CONFLICT (attorney_id, expertise_area) DO UPDATE SET
		proficiency_level = EXCLUDED.proficiency_level,
		years_experience = EXCLUDED.years_experience,
		cases_handled = EXCLUDED.cases_handled,
		success_rate = EXCLUDED.success_rate,
		last_case_date = EXCLUDED.last_case_date,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at`
	rows, err := r.db.NamedQueryContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("upsert attorney expertise: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&record.ID, &record.CreatedAt); err != nil {
			return fmt.Errorf("scan attorney expertise upsert: %w", err)
		}
	}
	return rows.Err()
}

// Find returns the record for (attorney, area), matching the area case-insensitively.
func (r *AttorneyExpertiseRepository) Find(ctx context.Context, attorneyID, area string) (*models.AttorneyExpertise, error) {
	query := `SELECT ` + attorneyExpertiseColumns + `
	FROM attorney_expertise WHERE attorney_id = $1 AND LOWER(expertise_area) = LOWER($2)`
	var record models.AttorneyExpertise
	if err := r.db.GetContext(ctx, &record, query, attorneyID, area); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByAttorney returns every area record of an attorney.
func (r *AttorneyExpertiseRepository) ListByAttorney(ctx context.Context, attorneyID string) ([]models.AttorneyExpertise, error) {
	query := `SELECT ` + attorneyExpertiseColumns + `
	FROM attorney_expertise WHERE attorney_id = $1 ORDER BY expertise_area`
	var records []models.AttorneyExpertise
	if err := r.db.SelectContext(ctx, &records, query, attorneyID); err != nil {
		return nil, fmt.Errorf("list attorney expertise: %w", err)
	}
	return records, nil
}

// ListByArea returns the records of the given attorneys in one area.
func (r *AttorneyExpertiseRepository) ListByArea(ctx context.Context, area string, attorneyIDs []string) ([]models.AttorneyExpertise, error) {
	if len(attorneyIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + attorneyExpertiseColumns + `
	FROM attorney_expertise
	WHERE LOWER(expertise_area) = LOWER($1) AND attorney_id = ANY($2)`
	var records []models.AttorneyExpertise
	if err := r.db.SelectContext(ctx, &records, query, area, pq.Array(attorneyIDs)); err != nil {
		return nil, fmt.Errorf("list expertise by area: %w", err)
	}
	return records, nil
}

// RecordOutcome folds a closed case into the attorney's area record. It reports
// false when no record exists for the pair.
func (r *AttorneyExpertiseRepository) RecordOutcome(ctx context.Context, exec sqlx.ExtContext, attorneyID, area string, successful bool, closedAt time.Time) (bool, error) {
	const query = `UPDATE attorney_expertise SET
		success_rate = ROUND((success_rate * cases_handled + CASE WHEN $3 THEN 100 ELSE 0 END) / (cases_handled + 1), 2),
		cases_handled = cases_handled + 1,
		last_case_date = GREATEST(COALESCE(last_case_date, $4), $4),
		updated_at = NOW()
	WHERE attorney_id = $1 AND LOWER(expertise_area) = LOWER($2)`
	result, err := r.exec(exec).ExecContext(ctx, query, attorneyID, area, successful, closedAt)
	if err != nil {
		return false, fmt.Errorf("record case outcome: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record case outcome rows: %w", err)
	}
	return rows > 0, nil
}
