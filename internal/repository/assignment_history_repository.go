package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// AssignmentHistoryRepository appends to and reads the assignment history log.
// The table rejects updates and deletes.
type AssignmentHistoryRepository struct {
	db *sqlx.DB
}

// NewAssignmentHistoryRepository constructs the repository.
func NewAssignmentHistoryRepository(db *sqlx.DB) *AssignmentHistoryRepository {
	return &AssignmentHistoryRepository{db: db}
}

// Append inserts one history row.
func (r *AssignmentHistoryRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.CaseAssignmentHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now().UTC()
	}
	if len(entry.Metadata) == 0 {
		entry.Metadata = types.JSONText(`{}`)
	}
	if exec == nil {
		exec = r.db
	}

	const query = `INSERT INTO case_assignment_history
	(id, case_assignment_id, case_id, user_id, action, previous_user_id, new_user_id, reason, performed_by, performed_at, metadata)
	VALUES (:id, :case_assignment_id, :case_id, :user_id, :action, :previous_user_id, :new_user_id, :reason, :performed_by, :performed_at, :metadata)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
		return fmt.Errorf("append assignment history: %w", err)
	}
	return nil
}

// ListByCase returns a page of a case's history in chronological order.
func (r *AssignmentHistoryRepository) ListByCase(ctx context.Context, filter models.HistoryFilter) ([]models.CaseAssignmentHistory, error) {
	const query = `SELECT id, case_assignment_id, case_id, user_id, action, previous_user_id, new_user_id, reason,
       performed_by, performed_at, metadata
	FROM case_assignment_history
	WHERE case_id = $1
	ORDER BY performed_at ASC, seq ASC
	LIMIT $2 OFFSET $3`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	var entries []models.CaseAssignmentHistory
	if err := r.db.SelectContext(ctx, &entries, query, filter.CaseID, limit, offset); err != nil {
		return nil, fmt.Errorf("list assignment history: %w", err)
	}
	return entries, nil
}

// CountByCase counts a case's history rows.
func (r *AssignmentHistoryRepository) CountByCase(ctx context.Context, caseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM case_assignment_history WHERE case_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, caseID); err != nil {
		return 0, fmt.Errorf("count assignment history: %w", err)
	}
	return total, nil
}
