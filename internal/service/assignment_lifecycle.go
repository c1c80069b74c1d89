package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/internal/repository"
	"github.com/noah-isme/case-assignment-api/pkg/database"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type assignmentStore interface {
	LockCase(ctx context.Context, exec sqlx.ExtContext, caseID string) error
	ListActiveForUpdate(ctx context.Context, exec sqlx.ExtContext, caseID string, role models.RoleType) ([]models.CaseAssignment, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseAssignment, error)
	ListActiveByCase(ctx context.Context, exec sqlx.ExtContext, caseID string) ([]models.CaseAssignment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.CaseAssignment) error
	Deactivate(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error)
	ListLapsed(ctx context.Context, asOf time.Time, limit int) ([]models.CaseAssignment, error)
}

type historyAppender interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.CaseAssignmentHistory) error
}

type txRunner interface {
	WithinTx(ctx context.Context, fn database.TxFunc) error
}

// CreateAssignmentParams describes a new assignment. A zero EffectiveFrom means now
// and a zero WorkloadWeight takes the configured default.
type CreateAssignmentParams struct {
	CaseID              string
	UserID              string
	RoleType            models.RoleType
	AssignmentType      models.AssignmentType
	RuleID              *string
	AssignedBy          *string
	EffectiveFrom       time.Time
	EffectiveTo         *time.Time
	WorkloadWeight      float64
	ExpertiseMatchScore *float64
	Notes               *string
	Reason              *string
	Metadata            map[string]interface{}
}

// ReassignParams replaces the active assignee of a case role.
type ReassignParams struct {
	CaseID              string
	RoleType            models.RoleType
	NewUserID           string
	AssignmentType      models.AssignmentType
	RuleID              *string
	PerformedBy         *string
	Reason              string
	WorkloadWeight      float64
	ExpertiseMatchScore *float64
	Notes               *string
	Metadata            map[string]interface{}

	// ExpectedCurrentUserID, when set, must hold the role at commit time.
	ExpectedCurrentUserID *string
}

// DeactivateParams ends one assignment.
type DeactivateParams struct {
	AssignmentID string
	ReasonCode   models.HistoryAction
	Reason       string
	PerformedBy  *string
}

// ReassignResult reports both sides of a reassignment. Previous is nil when the
// role had no holder.
type ReassignResult struct {
	Previous *models.CaseAssignment `json:"previous,omitempty"`
	Current  *models.CaseAssignment `json:"current"`
}

// AssignmentLifecycle performs assignment state transitions. Each transition
// runs in one transaction serialised per case.
type AssignmentLifecycle struct {
	repo          assignmentStore
	history       historyAppender
	tx            txRunner
	locker        *CaseLocker
	metrics       *MetricsService
	logger        *zap.Logger
	defaultWeight float64
	now           func() time.Time
}

// LifecycleOption configures the lifecycle.
type LifecycleOption func(*AssignmentLifecycle)

// WithLifecycleClock overrides the time source.
func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *AssignmentLifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// WithDefaultWorkloadWeight sets the weight used when none is given.
func WithDefaultWorkloadWeight(weight float64) LifecycleOption {
	return func(l *AssignmentLifecycle) {
		if weight > 0 {
			l.defaultWeight = weight
		}
	}
}

// WithLifecycleMetrics attaches the metrics service.
func WithLifecycleMetrics(metrics *MetricsService) LifecycleOption {
	return func(l *AssignmentLifecycle) {
		l.metrics = metrics
	}
}

// NewAssignmentLifecycle constructs the lifecycle.
func NewAssignmentLifecycle(repo assignmentStore, history historyAppender, tx txRunner, locker *CaseLocker, logger *zap.Logger, opts ...LifecycleOption) *AssignmentLifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewCaseLocker()
	}
	l := &AssignmentLifecycle{
		repo:          repo,
		history:       history,
		tx:            tx,
		locker:        locker,
		logger:        logger,
		defaultWeight: 1.0,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Create inserts an active assignment and its ASSIGNED history row. An active
// row for the same role whose window has already ended is expired first. A row
// still in force is an overlap, even when its window closes before the new one
// opens: only one row per role may be active.
func (l *AssignmentLifecycle) Create(ctx context.Context, params CreateAssignmentParams) (*models.CaseAssignment, error) {
	if err := l.validateCreate(&params); err != nil {
		return nil, err
	}

	var created *models.CaseAssignment
	err := l.run(ctx, params.CaseID, func(ctx context.Context, exec sqlx.ExtContext) error {
		active, err := l.repo.ListActiveForUpdate(ctx, exec, params.CaseID, params.RoleType)
		if err != nil {
			return err
		}
		now := l.now()
		for i := range active {
			row := active[i]
			if row.OverlapsFrom(now) || row.OverlapsFrom(params.EffectiveFrom) {
				return appErrors.Clone(appErrors.ErrOverlappingAssignment, "case already has an active "+string(params.RoleType)+" assignment")
			}
			if err := l.expire(ctx, exec, row, params.AssignedBy); err != nil {
				return err
			}
		}

		assignment := l.newAssignment(params)
		if err := l.repo.Create(ctx, exec, assignment); err != nil {
			return err
		}
		entry, err := historyEntry(assignment, models.HistoryAssigned, nil, params.Reason, params.AssignedBy, assignment.AssignedAt, params.Metadata)
		if err != nil {
			return err
		}
		if err := l.history.Append(ctx, exec, entry); err != nil {
			return err
		}
		created = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("case assigned",
		zap.String("case_id", created.CaseID),
		zap.String("user_id", created.UserID),
		zap.String("role_type", string(created.RoleType)),
		zap.String("assignment_type", string(created.AssignmentType)),
	)
	return created, nil
}

// Deactivate ends an assignment. Deactivating an inactive row is a no-op.
func (l *AssignmentLifecycle) Deactivate(ctx context.Context, params DeactivateParams) (*models.CaseAssignment, error) {
	if params.ReasonCode != models.HistoryRemoved && params.ReasonCode != models.HistoryExpired {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reason code must be REMOVED or EXPIRED")
	}
	current, err := l.repo.FindByID(ctx, nil, params.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	var result *models.CaseAssignment
	err = l.run(ctx, current.CaseID, func(ctx context.Context, exec sqlx.ExtContext) error {
		row, err := l.repo.FindByID(ctx, exec, params.AssignmentID)
		if err != nil {
			return err
		}
		if !row.Active {
			result = row
			return nil
		}
		at := l.now()
		changed, err := l.repo.Deactivate(ctx, exec, row.ID, at)
		if err != nil {
			return err
		}
		if !changed {
			result = row
			return nil
		}
		closeWindow(row, at)
		entry, err := historyEntry(row, params.ReasonCode, &row.UserID, optionalString(params.Reason), params.PerformedBy, at, nil)
		if err != nil {
			return err
		}
		if err := l.history.Append(ctx, exec, entry); err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reassign swaps the active assignee of a role in one transaction and records a
// single REASSIGNED row. Without a current holder it records ASSIGNED.
func (l *AssignmentLifecycle) Reassign(ctx context.Context, params ReassignParams) (*ReassignResult, error) {
	return l.reassign(ctx, params, models.HistoryReassigned, nil)
}

// Transfer runs prepare and a TRANSFERRED reassignment in the same
// transaction. The current holder must match ExpectedCurrentUserID.
func (l *AssignmentLifecycle) Transfer(ctx context.Context, params ReassignParams, prepare database.TxFunc) (*ReassignResult, error) {
	if params.ExpectedCurrentUserID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "transfer requires the current assignee")
	}
	return l.reassign(ctx, params, models.HistoryTransferred, prepare)
}

func (l *AssignmentLifecycle) reassign(ctx context.Context, params ReassignParams, action models.HistoryAction, prepare database.TxFunc) (*ReassignResult, error) {
	if strings.TrimSpace(params.CaseID) == "" || strings.TrimSpace(params.NewUserID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case id and new user id are required")
	}
	if !params.RoleType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role type")
	}
	if params.AssignmentType == "" {
		params.AssignmentType = models.AssignmentTypeManual
	}

	var result *ReassignResult
	err := l.run(ctx, params.CaseID, func(ctx context.Context, exec sqlx.ExtContext) error {
		if prepare != nil {
			if err := prepare(ctx, exec); err != nil {
				return err
			}
		}

		now := l.now()
		active, err := l.repo.ListActiveForUpdate(ctx, exec, params.CaseID, params.RoleType)
		if err != nil {
			return err
		}
		var current *models.CaseAssignment
		for i := range active {
			row := active[i]
			if !row.OverlapsFrom(now) {
				if err := l.expire(ctx, exec, row, params.PerformedBy); err != nil {
					return err
				}
				continue
			}
			if current != nil {
				return appErrors.Clone(appErrors.ErrOverlappingAssignment, "case role has more than one active assignment")
			}
			current = &row
		}

		if params.ExpectedCurrentUserID != nil && (current == nil || current.UserID != *params.ExpectedCurrentUserID) {
			return appErrors.Clone(appErrors.ErrInvalidStateTransition, "case is no longer held by the requested attorney")
		}
		if current != nil && current.UserID == params.NewUserID {
			return appErrors.Clone(appErrors.ErrValidation, "attorney already holds this assignment")
		}

		var previousUserID *string
		if current != nil {
			changed, err := l.repo.Deactivate(ctx, exec, current.ID, now)
			if err != nil {
				return err
			}
			if !changed {
				return appErrors.Clone(appErrors.ErrInvalidStateTransition, "current assignment changed concurrently")
			}
			closeWindow(current, now)
			previousUserID = &current.UserID
		}

		assignment := l.newAssignment(CreateAssignmentParams{
			CaseID:              params.CaseID,
			UserID:              params.NewUserID,
			RoleType:            params.RoleType,
			AssignmentType:      params.AssignmentType,
			RuleID:              params.RuleID,
			AssignedBy:          params.PerformedBy,
			EffectiveFrom:       now,
			WorkloadWeight:      params.WorkloadWeight,
			ExpertiseMatchScore: params.ExpertiseMatchScore,
			Notes:               params.Notes,
		})
		assignment.AssignedAt = now
		if err := l.repo.Create(ctx, exec, assignment); err != nil {
			return err
		}

		recorded := action
		if current == nil {
			recorded = models.HistoryAssigned
		}
		entry, err := historyEntry(assignment, recorded, previousUserID, optionalString(params.Reason), params.PerformedBy, now, params.Metadata)
		if err != nil {
			return err
		}
		if err := l.history.Append(ctx, exec, entry); err != nil {
			return err
		}
		result = &ReassignResult{Previous: current, Current: assignment}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("case_id", params.CaseID),
		zap.String("new_user_id", params.NewUserID),
		zap.String("action", string(action)),
	}
	if result.Previous != nil {
		fields = append(fields, zap.String("previous_user_id", result.Previous.UserID))
	}
	l.logger.Info("case reassigned", fields...)
	return result, nil
}

// ReleaseCase deactivates every active assignment of a case with a REMOVED
// row each. after runs inside the same transaction with the released rows.
func (l *AssignmentLifecycle) ReleaseCase(ctx context.Context, caseID, reason string, performedBy *string, after func(ctx context.Context, exec sqlx.ExtContext, released []models.CaseAssignment) error) ([]models.CaseAssignment, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "case id is required")
	}
	var released []models.CaseAssignment
	err := l.run(ctx, caseID, func(ctx context.Context, exec sqlx.ExtContext) error {
		released = nil
		active, err := l.repo.ListActiveByCase(ctx, exec, caseID)
		if err != nil {
			return err
		}
		now := l.now()
		for i := range active {
			row := active[i]
			changed, err := l.repo.Deactivate(ctx, exec, row.ID, now)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			closeWindow(&row, now)
			entry, err := historyEntry(&row, models.HistoryRemoved, &row.UserID, optionalString(reason), performedBy, now, map[string]interface{}{"release": true})
			if err != nil {
				return err
			}
			if err := l.history.Append(ctx, exec, entry); err != nil {
				return err
			}
			released = append(released, row)
		}
		if after != nil {
			return after(ctx, exec, released)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("case released", zap.String("case_id", caseID), zap.Int("released", len(released)))
	return released, nil
}

// ExpireLapsed deactivates active assignments whose window ended at or before
// asOf. Failures on one case are logged and do not stop the sweep.
func (l *AssignmentLifecycle) ExpireLapsed(ctx context.Context, asOf time.Time, limit int) (int, error) {
	lapsed, err := l.repo.ListLapsed(ctx, asOf, limit)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lapsed assignments")
	}
	expired := 0
	for _, candidate := range lapsed {
		id := candidate.ID
		done := false
		err := l.run(ctx, candidate.CaseID, func(ctx context.Context, exec sqlx.ExtContext) error {
			done = false
			row, err := l.repo.FindByID(ctx, exec, id)
			if err != nil {
				return err
			}
			if !row.Active || row.EffectiveTo == nil || row.EffectiveTo.After(asOf) {
				return nil
			}
			if err := l.expire(ctx, exec, *row, nil); err != nil {
				return err
			}
			done = true
			return nil
		})
		if err != nil {
			l.logger.Error("failed to expire assignment",
				zap.String("assignment_id", id),
				zap.String("case_id", candidate.CaseID),
				zap.Error(err),
			)
			continue
		}
		if done {
			expired++
		}
	}
	if expired > 0 {
		l.logger.Info("expired lapsed assignments", zap.Int("count", expired))
	}
	return expired, nil
}

// expire closes a row at the end of its own window and records EXPIRED.
func (l *AssignmentLifecycle) expire(ctx context.Context, exec sqlx.ExtContext, row models.CaseAssignment, performedBy *string) error {
	at := l.now()
	if row.EffectiveTo != nil {
		at = *row.EffectiveTo
	}
	changed, err := l.repo.Deactivate(ctx, exec, row.ID, at)
	if err != nil || !changed {
		return err
	}
	closeWindow(&row, at)
	reason := "effective window ended"
	entry, err := historyEntry(&row, models.HistoryExpired, &row.UserID, &reason, performedBy, l.now(), nil)
	if err != nil {
		return err
	}
	return l.history.Append(ctx, exec, entry)
}

// run serialises fn per case: in process, then with the advisory lock inside
// the transaction.
func (l *AssignmentLifecycle) run(ctx context.Context, caseID string, fn database.TxFunc) error {
	unlock := l.locker.Lock(caseID)
	defer unlock()

	err := l.tx.WithinTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := l.repo.LockCase(ctx, exec, caseID); err != nil {
			return err
		}
		return fn(ctx, exec)
	})
	return l.mapError(err)
}

func (l *AssignmentLifecycle) mapError(err error) error {
	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err, repository.ActiveAssignmentIndex) {
		return appErrors.Wrap(err, appErrors.ErrOverlappingAssignment.Code, appErrors.ErrOverlappingAssignment.Status, appErrors.ErrOverlappingAssignment.Message)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.ErrNotFound
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		if appErr.Code == appErrors.ErrTransientStore.Code {
			l.metrics.RecordTransactionFailure()
		}
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "assignment transaction failed")
}

func (l *AssignmentLifecycle) validateCreate(params *CreateAssignmentParams) error {
	if strings.TrimSpace(params.CaseID) == "" || strings.TrimSpace(params.UserID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "case id and user id are required")
	}
	if !params.RoleType.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role type")
	}
	if params.AssignmentType == "" {
		params.AssignmentType = models.AssignmentTypeManual
	}
	if params.EffectiveFrom.IsZero() {
		params.EffectiveFrom = l.now()
	}
	if params.EffectiveTo != nil && !params.EffectiveTo.After(params.EffectiveFrom) {
		return appErrors.Clone(appErrors.ErrValidation, "effectiveTo must be after effectiveFrom")
	}
	if params.WorkloadWeight < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "workload weight must be positive")
	}
	return nil
}

func (l *AssignmentLifecycle) newAssignment(params CreateAssignmentParams) *models.CaseAssignment {
	weight := params.WorkloadWeight
	if weight <= 0 {
		weight = l.defaultWeight
	}
	return &models.CaseAssignment{
		CaseID:              params.CaseID,
		UserID:              params.UserID,
		RoleType:            params.RoleType,
		AssignmentType:      params.AssignmentType,
		RuleID:              params.RuleID,
		AssignedBy:          params.AssignedBy,
		AssignedAt:          l.now(),
		EffectiveFrom:       params.EffectiveFrom,
		EffectiveTo:         params.EffectiveTo,
		Active:              true,
		WorkloadWeight:      weight,
		ExpertiseMatchScore: params.ExpertiseMatchScore,
		Notes:               params.Notes,
	}
}

func historyEntry(a *models.CaseAssignment, action models.HistoryAction, previousUserID, reason, performedBy *string, at time.Time, metadata map[string]interface{}) (*models.CaseAssignmentHistory, error) {
	meta := types.JSONText(`{}`)
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "history metadata is not serialisable")
		}
		meta = types.JSONText(raw)
	}
	entry := &models.CaseAssignmentHistory{
		CaseAssignmentID: a.ID,
		CaseID:           a.CaseID,
		UserID:           a.UserID,
		Action:           action,
		PreviousUserID:   previousUserID,
		Reason:           reason,
		PerformedBy:      performedBy,
		PerformedAt:      at,
		Metadata:         meta,
	}
	switch action {
	case models.HistoryAssigned, models.HistoryReassigned, models.HistoryTransferred:
		newUser := a.UserID
		entry.NewUserID = &newUser
	}
	return entry, nil
}

func closeWindow(a *models.CaseAssignment, at time.Time) {
	a.Active = false
	if a.EffectiveTo == nil || a.EffectiveTo.After(at) {
		end := at
		a.EffectiveTo = &end
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
