package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/internal/repository"
	"github.com/noah-isme/case-assignment-api/pkg/database"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type transferStore interface {
	Create(ctx context.Context, request *models.CaseTransferRequest) error
	FindByID(ctx context.Context, id string) (*models.CaseTransferRequest, error)
	HasPending(ctx context.Context, caseID string) (bool, error)
	MarkProcessed(ctx context.Context, exec sqlx.ExtContext, params repository.MarkProcessedParams) error
	List(ctx context.Context, filter models.TransferFilter) ([]models.CaseTransferRequest, int, error)
}

type activeAssignmentReader interface {
	ListActiveByCase(ctx context.Context, exec sqlx.ExtContext, caseID string) ([]models.CaseAssignment, error)
}

type caseAttributeReader interface {
	GetCaseAttributes(ctx context.Context, caseID string) (*models.CaseAttributes, error)
}

// TransferResult is the processed request plus, for approvals, the assignment change.
type TransferResult struct {
	Request    *models.CaseTransferRequest `json:"request"`
	Assignment *ReassignResult             `json:"assignment,omitempty"`
}

// TransferService runs the request/approve workflow for moving a case's primary
// assignment between attorneys.
type TransferService struct {
	repo        transferStore
	assignments activeAssignmentReader
	cases       caseAttributeReader
	lifecycle   *AssignmentLifecycle
	refresher   workloadRefresher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	primaryRole models.RoleType
	now         func() time.Time
}

// NewTransferService constructs the service.
func NewTransferService(repo transferStore, assignments activeAssignmentReader, cases caseAttributeReader, lifecycle *AssignmentLifecycle, refresher workloadRefresher, metrics *MetricsService, primaryRole models.RoleType, validate *validator.Validate, logger *zap.Logger) *TransferService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !primaryRole.Valid() {
		primaryRole = models.RoleTypeLeadAttorney
	}
	return &TransferService{
		repo:        repo,
		assignments: assignments,
		cases:       cases,
		lifecycle:   lifecycle,
		refresher:   refresher,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		primaryRole: primaryRole,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// RequestTransfer opens a PENDING transfer. The source attorney must hold the
// case's active primary assignment and at most one request may be pending per case.
func (s *TransferService) RequestTransfer(ctx context.Context, req dto.CreateTransferRequest, actor *models.JWTClaims) (*models.CaseTransferRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transfer payload")
	}
	if _, err := s.loadCase(ctx, req.CaseID, actor); err != nil {
		return nil, err
	}

	active, err := s.assignments.ListActiveByCase(ctx, nil, req.CaseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	holds := false
	for _, a := range active {
		if a.RoleType == s.primaryRole && a.UserID == req.FromUserID {
			holds = true
			break
		}
	}
	if !holds {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "source attorney does not hold the case's primary assignment")
	}

	pending, err := s.repo.HasPending(ctx, req.CaseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending transfers")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a transfer request is already pending for this case")
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = models.UrgencyMedium
	}
	request := &models.CaseTransferRequest{
		ID:          uuid.NewString(),
		CaseID:      req.CaseID,
		FromUserID:  req.FromUserID,
		ToUserID:    req.ToUserID,
		Reason:      strings.TrimSpace(req.Reason),
		Urgency:     urgency,
		Status:      models.TransferPending,
		RequestedAt: s.now(),
	}
	if actor != nil {
		request.RequestedBy = actor.UserID
	}
	if err := s.repo.Create(ctx, request); err != nil {
		if database.IsUniqueViolation(err, repository.PendingTransferIndex) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a transfer request is already pending for this case")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transfer request")
	}
	s.logger.Info("transfer requested",
		zap.String("transfer_id", request.ID),
		zap.String("case_id", request.CaseID),
		zap.String("from_user_id", request.FromUserID),
		zap.String("to_user_id", request.ToUserID),
	)
	return request, nil
}

// Process applies an approver's decision to a PENDING request. Approval moves
// the primary assignment in the same transaction that closes the request, so
// either both happen or neither does.
func (s *TransferService) Process(ctx context.Context, id string, req dto.ProcessTransferRequest, actor *models.JWTClaims) (*TransferResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	request, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if request.Status != models.TransferPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "transfer request is already "+strings.ToLower(string(request.Status)))
	}

	processedAt := s.now()
	mark := repository.MarkProcessedParams{
		ID:          request.ID,
		Status:      req.Decision,
		ProcessedAt: processedAt,
	}
	var approver *string
	if actor != nil {
		mark.ApprovedBy = actor.UserID
		approver = actorID(actor)
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		mark.ApprovalNotes = &notes
	}
	markProcessed := func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.repo.MarkProcessed(ctx, exec, mark); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidStateTransition, "transfer request is no longer pending")
			}
			return err
		}
		return nil
	}

	result := &TransferResult{}
	if req.Decision == models.TransferApproved {
		expected := request.FromUserID
		moved, err := s.lifecycle.Transfer(ctx, ReassignParams{
			CaseID:                request.CaseID,
			RoleType:              s.primaryRole,
			NewUserID:             request.ToUserID,
			AssignmentType:        models.AssignmentTypeManual,
			PerformedBy:           approver,
			Reason:                request.Reason,
			Metadata:              map[string]interface{}{"transferRequestId": request.ID},
			ExpectedCurrentUserID: &expected,
		}, markProcessed)
		if err != nil {
			return nil, err
		}
		result.Assignment = moved
		if s.refresher != nil {
			s.refresher.Refresh(context.WithoutCancel(ctx), request.FromUserID, request.ToUserID)
		}
	} else {
		if err := markProcessed(ctx, nil); err != nil {
			if _, ok := err.(*appErrors.Error); ok {
				return nil, err
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update transfer request")
		}
	}
	s.metrics.RecordTransferDecision(string(req.Decision))

	request.Status = req.Decision
	request.ApprovedBy = approver
	request.ApprovalNotes = mark.ApprovalNotes
	request.ProcessedAt = &processedAt
	result.Request = request

	s.logger.Info("transfer processed",
		zap.String("transfer_id", request.ID),
		zap.String("case_id", request.CaseID),
		zap.String("decision", string(req.Decision)),
	)
	return result, nil
}

// Get returns one transfer request.
func (s *TransferService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.CaseTransferRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transfer request")
	}
	if _, err := s.loadCase(ctx, request.CaseID, actor); err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transfer request not found")
		}
		return nil, err
	}
	return request, nil
}

// List returns a page of transfer requests.
func (s *TransferService) List(ctx context.Context, query dto.TransferQuery, actor *models.JWTClaims) ([]models.CaseTransferRequest, *models.Pagination, error) {
	if query.CaseID != "" {
		if _, err := s.loadCase(ctx, query.CaseID, actor); err != nil {
			return nil, nil, err
		}
	}
	page, size, offset := models.Page(query.Page, query.PageSize, 100)
	requests, total, err := s.repo.List(ctx, models.TransferFilter{
		CaseID: query.CaseID,
		Status: query.Status,
		UserID: query.UserID,
		Limit:  size,
		Offset: offset,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transfer requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *TransferService) loadCase(ctx context.Context, caseID string, actor *models.JWTClaims) (*models.CaseAttributes, error) {
	attrs, err := s.cases.GetCaseAttributes(ctx, caseID)
	if err != nil {
		return nil, mapCaseLookupError(err)
	}
	if actor != nil && actor.OrganizationID != "" && actor.OrganizationID != attrs.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}
	return attrs, nil
}
