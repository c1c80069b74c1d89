package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/case-assignment-api/internal/models"
)

// PendingTransferIndex enforces one outstanding transfer request per case.
const PendingTransferIndex = "uq_case_transfer_requests_pending"

const transferRequestColumns = `id, case_id, from_user_id, to_user_id, requested_by, reason, urgency, status,
       approved_by, approval_notes, requested_at, processed_at`

// TransferRequestRepository persists case transfer requests.
type TransferRequestRepository struct {
	db *sqlx.DB
}

// NewTransferRequestRepository constructs the repository.
func NewTransferRequestRepository(db *sqlx.DB) *TransferRequestRepository {
	return &TransferRequestRepository{db: db}
}

// Create inserts a new PENDING request.
func (r *TransferRequestRepository) Create(ctx context.Context, request *models.CaseTransferRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.TransferPending
	}
	if request.Urgency == "" {
		request.Urgency = models.UrgencyMedium
	}
	if request.RequestedAt.IsZero() {
		request.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO case_transfer_requests
	(id, case_id, from_user_id, to_user_id, requested_by, reason, urgency, status, requested_at)
	VALUES (:id, :case_id, :from_user_id, :to_user_id, :requested_by, :reason, :urgency, :status, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}
	return nil
}

// FindByID fetches a request.
func (r *TransferRequestRepository) FindByID(ctx context.Context, id string) (*models.CaseTransferRequest, error) {
	query := `SELECT ` + transferRequestColumns + ` FROM case_transfer_requests WHERE id = $1`
	var request models.CaseTransferRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// HasPending reports whether the case already has an outstanding request.
func (r *TransferRequestRepository) HasPending(ctx context.Context, caseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM case_transfer_requests WHERE case_id = $1 AND status = 'PENDING')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, caseID); err != nil {
		return false, fmt.Errorf("check pending transfer: %w", err)
	}
	return exists, nil
}

// MarkProcessedParams groups the columns written when a request leaves PENDING.
type MarkProcessedParams struct {
	ID            string
	Status        models.TransferStatus
	ApprovedBy    string
	ApprovalNotes *string
	ProcessedAt   time.Time
}

// MarkProcessed moves a PENDING request to a terminal status. sql.ErrNoRows means
// the request was not PENDING any more.
func (r *TransferRequestRepository) MarkProcessed(ctx context.Context, exec sqlx.ExtContext, params MarkProcessedParams) error {
	if exec == nil {
		exec = r.db
	}
	const query = `UPDATE case_transfer_requests
	SET status = $2, approved_by = $3, approval_notes = $4, processed_at = $5
	WHERE id = $1 AND status = 'PENDING'`
	result, err := exec.ExecContext(ctx, query, params.ID, params.Status, params.ApprovedBy, params.ApprovalNotes, params.ProcessedAt)
	if err != nil {
		return fmt.Errorf("mark transfer processed: %w", err)
	}
	return requireAffected(result, "mark transfer processed")
}

// List returns requests matching the filter, newest first, with the total count.
func (r *TransferRequestRepository) List(ctx context.Context, filter models.TransferFilter) ([]models.CaseTransferRequest, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	if filter.CaseID != "" {
		args = append(args, filter.CaseID)
		conditions = append(conditions, fmt.Sprintf("case_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("(from_user_id = $%[1]d OR to_user_id = $%[1]d OR requested_by = $%[1]d)", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM case_transfer_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count transfer requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM case_transfer_requests%s ORDER BY requested_at DESC LIMIT %d OFFSET %d",
		transferRequestColumns, where, limit, offset)

	var requests []models.CaseTransferRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transfer requests: %w", err)
	}
	return requests, total, nil
}
