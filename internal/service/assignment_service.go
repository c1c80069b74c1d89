package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

const (
	outcomeAssigned   = "assigned"
	outcomeUnassigned = "unassigned"
	outcomeFailed     = "failed"

	warningNoRule      = "no assignment rule matched; manual assignment required"
	warningNoCandidate = "no eligible attorney for the matched rule; manual assignment required"
)

type caseReader interface {
	GetCaseAttributes(ctx context.Context, caseID string) (*models.CaseAttributes, error)
	ListActiveAttorneys(ctx context.Context, organizationID, practiceArea string) ([]string, error)
}

type assignmentReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CaseAssignment, error)
	ListActiveByCase(ctx context.Context, exec sqlx.ExtContext, caseID string) ([]models.CaseAssignment, error)
	ListPreviousAttorneys(ctx context.Context, caseID string, clientID *string, caseType string) ([]models.PreviousAttorney, error)
}

type historyReader interface {
	ListByCase(ctx context.Context, filter models.HistoryFilter) ([]models.CaseAssignmentHistory, error)
	CountByCase(ctx context.Context, caseID string) (int, error)
}

type ruleSelector interface {
	SelectRule(ctx context.Context, organizationID string, attrs models.CaseAttributes) (*models.RuleMatch, error)
}

type expertiseScorer interface {
	ScoresForArea(ctx context.Context, area string, attorneyIDs []string) (map[string]float64, error)
	RecordCaseOutcome(ctx context.Context, exec sqlx.ExtContext, attorneyID, area string, successful bool, closedAt time.Time) error
}

type workloadReader interface {
	LatestByAttorney(ctx context.Context, attorneyIDs []string) (map[string]models.UserWorkload, error)
}

type workloadRefresher interface {
	Refresh(ctx context.Context, attorneyIDs ...string)
}

// AssignmentDeps groups the collaborators of AssignmentService.
type AssignmentDeps struct {
	Cases       caseReader
	Assignments assignmentReader
	History     historyReader
	Rules       ruleSelector
	Expertise   expertiseScorer
	Workloads   workloadReader
	Selector    *CandidateSelector
	Lifecycle   *AssignmentLifecycle
	Refresher   workloadRefresher
	Notifier    AdminNotifier
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	PrimaryRole models.RoleType
}

// AssignmentService is the entry point for assigning cases and reading their assignment state.
type AssignmentService struct {
	deps AssignmentDeps
	now  func() time.Time
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDeps) *AssignmentService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(deps.Logger)
	}
	if !deps.PrimaryRole.Valid() {
		deps.PrimaryRole = models.RoleTypeLeadAttorney
	}
	return &AssignmentService{deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// AssignCase assigns a case. With an explicit user it is a manual assignment;
// otherwise the rule engine and candidate selector decide. When no rule or no
// candidate qualifies the outcome is unassigned with a warning and the admin
// notifier is called.
func (s *AssignmentService) AssignCase(ctx context.Context, caseID string, req dto.AssignCaseRequest, actor *models.JWTClaims) (*models.AssignmentOutcome, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	attrs, err := s.loadCase(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}
	performedBy := actorID(actor)

	role := req.RoleType
	if req.UserID != nil {
		if role == "" {
			role = s.deps.PrimaryRole
		}
		assignmentType := req.AssignmentType
		if assignmentType == "" {
			assignmentType = models.AssignmentTypeManual
		}
		params := CreateAssignmentParams{
			CaseID:         attrs.CaseID,
			UserID:         *req.UserID,
			RoleType:       role,
			AssignmentType: assignmentType,
			AssignedBy:     performedBy,
			EffectiveTo:    req.EffectiveTo,
			Notes:          req.Notes,
		}
		if req.EffectiveFrom != nil {
			params.EffectiveFrom = *req.EffectiveFrom
		}
		if req.WorkloadWeight != nil {
			params.WorkloadWeight = *req.WorkloadWeight
		}
		assignment, err := s.deps.Lifecycle.Create(ctx, params)
		if err != nil {
			s.deps.Metrics.RecordAssignment(string(assignmentType), outcomeFailed)
			return nil, err
		}
		s.deps.Metrics.RecordAssignment(string(assignmentType), outcomeAssigned)
		s.refresh(ctx, assignment.UserID)
		return &models.AssignmentOutcome{Assignment: assignment, Assigned: true}, nil
	}

	decision, err := s.decide(ctx, *attrs, nil)
	if err != nil {
		return nil, err
	}
	assignmentType := req.AssignmentType
	if assignmentType == "" || assignmentType == models.AssignmentTypeManual {
		assignmentType = models.AssignmentTypeRuleBased
	}
	if decision.warning != "" {
		return s.unassigned(ctx, *attrs, string(assignmentType), decision), nil
	}
	if role == "" {
		role = decision.role(s.deps.PrimaryRole)
	}

	params := CreateAssignmentParams{
		CaseID:              attrs.CaseID,
		UserID:              decision.candidate.UserID,
		RoleType:            role,
		AssignmentType:      assignmentType,
		RuleID:              &decision.match.Rule.ID,
		AssignedBy:          performedBy,
		EffectiveTo:         req.EffectiveTo,
		ExpertiseMatchScore: &decision.candidate.ExpertiseScore,
		Notes:               firstString(req.Notes, decision.match.Actions.Notes),
		Metadata:            decision.metadata(),
	}
	if req.EffectiveFrom != nil {
		params.EffectiveFrom = *req.EffectiveFrom
	}
	if w := firstFloat(req.WorkloadWeight, decision.match.Actions.WorkloadWeight); w != nil {
		params.WorkloadWeight = *w
	}
	assignment, err := s.deps.Lifecycle.Create(ctx, params)
	if err != nil {
		s.deps.Metrics.RecordAssignment(string(assignmentType), outcomeFailed)
		return nil, err
	}
	s.deps.Metrics.RecordAssignment(string(assignmentType), outcomeAssigned)
	s.refresh(ctx, assignment.UserID)
	candidate := decision.candidate
	return &models.AssignmentOutcome{
		Assignment: assignment,
		Assigned:   true,
		RuleID:     &decision.match.Rule.ID,
		Candidate:  &candidate,
	}, nil
}

// ReassignCase replaces the holder of a role. Without NewUserID the engine
// picks a replacement, never the current holder.
func (s *AssignmentService) ReassignCase(ctx context.Context, caseID string, req dto.ReassignCaseRequest, actor *models.JWTClaims) (*models.AssignmentOutcome, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}
	attrs, err := s.loadCase(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}
	role := req.RoleType
	if role == "" {
		role = s.deps.PrimaryRole
	}
	params := ReassignParams{
		CaseID:         attrs.CaseID,
		RoleType:       role,
		AssignmentType: models.AssignmentTypeManual,
		PerformedBy:    actorID(actor),
		Reason:         req.Reason,
	}

	var decision *autoDecision
	if req.NewUserID != nil {
		params.NewUserID = *req.NewUserID
	} else {
		exclude := map[string]struct{}{}
		active, err := s.deps.Assignments.ListActiveByCase(ctx, nil, attrs.CaseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		}
		for _, a := range active {
			if a.RoleType == role {
				exclude[a.UserID] = struct{}{}
			}
		}
		decision, err = s.decide(ctx, *attrs, exclude)
		if err != nil {
			return nil, err
		}
		if decision.warning != "" {
			return s.unassigned(ctx, *attrs, string(models.AssignmentTypeRuleBased), decision), nil
		}
		params.NewUserID = decision.candidate.UserID
		params.AssignmentType = models.AssignmentTypeRuleBased
		params.RuleID = &decision.match.Rule.ID
		params.ExpertiseMatchScore = &decision.candidate.ExpertiseScore
		params.Notes = decision.match.Actions.Notes
		params.Metadata = decision.metadata()
		if decision.match.Actions.WorkloadWeight != nil {
			params.WorkloadWeight = *decision.match.Actions.WorkloadWeight
		}
	}

	result, err := s.deps.Lifecycle.Reassign(ctx, params)
	if err != nil {
		s.deps.Metrics.RecordAssignment(string(params.AssignmentType), outcomeFailed)
		return nil, err
	}
	s.deps.Metrics.RecordAssignment(string(params.AssignmentType), outcomeAssigned)

	outcome := &models.AssignmentOutcome{Assignment: result.Current, Previous: result.Previous, Assigned: true}
	refresh := []string{result.Current.UserID}
	if result.Previous != nil {
		refresh = append(refresh, result.Previous.UserID)
	}
	if decision != nil {
		candidate := decision.candidate
		outcome.RuleID = &decision.match.Rule.ID
		outcome.Candidate = &candidate
	}
	s.refresh(ctx, refresh...)
	return outcome, nil
}

// ReleaseCase ends every active assignment of a closed case and, when the
// outcome is known, folds it into each attorney's expertise record.
func (s *AssignmentService) ReleaseCase(ctx context.Context, caseID string, req dto.ReleaseCaseRequest, actor *models.JWTClaims) ([]models.CaseAssignment, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid release payload")
	}
	attrs, err := s.loadCase(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}
	area := attrs.Area()
	closedAt := s.now()

	released, err := s.deps.Lifecycle.ReleaseCase(ctx, attrs.CaseID, req.Reason, actorID(actor),
		func(ctx context.Context, exec sqlx.ExtContext, released []models.CaseAssignment) error {
			if req.Successful == nil || s.deps.Expertise == nil {
				return nil
			}
			seen := make(map[string]struct{}, len(released))
			for _, a := range released {
				if _, dup := seen[a.UserID]; dup {
					continue
				}
				seen[a.UserID] = struct{}{}
				if err := s.deps.Expertise.RecordCaseOutcome(ctx, exec, a.UserID, area, *req.Successful, closedAt); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(released))
	for _, a := range released {
		users = append(users, a.UserID)
	}
	s.refresh(ctx, users...)
	return released, nil
}

// DeactivateAssignment ends one assignment.
func (s *AssignmentService) DeactivateAssignment(ctx context.Context, assignmentID string, req dto.DeactivateAssignmentRequest, actor *models.JWTClaims) (*models.CaseAssignment, error) {
	if err := s.deps.Validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deactivation payload")
	}
	existing, err := s.deps.Assignments.FindByID(ctx, nil, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if _, err := s.loadCase(ctx, existing.CaseID, actor); err != nil {
		return nil, err
	}
	assignment, err := s.deps.Lifecycle.Deactivate(ctx, DeactivateParams{
		AssignmentID: assignmentID,
		ReasonCode:   req.ReasonCode,
		Reason:       req.Reason,
		PerformedBy:  actorID(actor),
	})
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, assignment.UserID)
	return assignment, nil
}

// ActiveAssignments lists a case's active assignments.
func (s *AssignmentService) ActiveAssignments(ctx context.Context, caseID string, actor *models.JWTClaims) ([]models.CaseAssignment, error) {
	attrs, err := s.loadCase(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}
	assignments, err := s.deps.Assignments.ListActiveByCase(ctx, nil, attrs.CaseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// History returns a page of a case's assignment history, oldest first.
func (s *AssignmentService) History(ctx context.Context, caseID string, page, size int, actor *models.JWTClaims) ([]models.CaseAssignmentHistory, *models.Pagination, error) {
	attrs, err := s.loadCase(ctx, caseID, actor)
	if err != nil {
		return nil, nil, err
	}
	page, size, offset := models.Page(page, size, 200)
	total, err := s.deps.History.CountByCase(ctx, attrs.CaseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count history")
	}
	entries, err := s.deps.History.ListByCase(ctx, models.HistoryFilter{CaseID: attrs.CaseID, Limit: size, Offset: offset})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list history")
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Preview reports what automatic assignment would do for a case without changing anything.
func (s *AssignmentService) Preview(ctx context.Context, caseID string, actor *models.JWTClaims) (*dto.EvaluateRuleResult, error) {
	attrs, err := s.loadCase(ctx, caseID, actor)
	if err != nil {
		return nil, err
	}
	result := &dto.EvaluateRuleResult{CaseID: attrs.CaseID}
	decision, err := s.decide(ctx, *attrs, nil)
	if err != nil {
		return nil, err
	}
	result.Warning = decision.warning
	if decision.match != nil {
		result.Matched = true
		result.Match = decision.match
		result.Pool = s.deps.Selector.Rank(decision.constraints(), decision.pool)
	}
	if decision.warning == "" {
		candidate := decision.candidate
		result.Candidate = &candidate
	}
	return result, nil
}

type autoDecision struct {
	match     *models.RuleMatch
	pool      []models.Candidate
	candidate models.Candidate
	warning   string
}

func (d *autoDecision) constraints() models.SelectionConstraints {
	return models.SelectionConstraints{
		MaxWorkloadPercentage:  d.match.Rule.MaxWorkloadPercentage,
		MinExpertiseScore:      d.match.Rule.MinExpertiseScore,
		PreferPreviousAttorney: d.match.Rule.PreferPreviousAttorney,
		AssignToUserID:         d.match.Actions.AssignToUserID,
	}
}

func (d *autoDecision) role(fallback models.RoleType) models.RoleType {
	if d.match != nil && d.match.Actions.RoleType != nil {
		return models.RoleType(*d.match.Actions.RoleType)
	}
	return fallback
}

func (d *autoDecision) metadata() map[string]interface{} {
	return map[string]interface{}{
		"ruleId":             d.match.Rule.ID,
		"ruleName":           d.match.Rule.RuleName,
		"score":              d.candidate.Score,
		"expertiseScore":     d.candidate.ExpertiseScore,
		"capacityPercentage": d.candidate.CapacityPercentage,
	}
}

// decide runs rule selection and candidate selection. A recoverable miss is
// reported through warning rather than an error.
func (s *AssignmentService) decide(ctx context.Context, attrs models.CaseAttributes, exclude map[string]struct{}) (*autoDecision, error) {
	match, err := s.deps.Rules.SelectRule(ctx, attrs.OrganizationID, attrs)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return &autoDecision{warning: warningNoRule}, nil
	}
	decision := &autoDecision{match: match}

	pool, err := s.buildPool(ctx, attrs, exclude)
	if err != nil {
		return nil, err
	}
	decision.pool = pool

	var previous []string
	if match.Rule.PreferPreviousAttorney {
		prior, err := s.deps.Assignments.ListPreviousAttorneys(ctx, attrs.CaseID, attrs.ClientID, attrs.CaseType)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous attorneys")
		}
		for _, p := range prior {
			previous = append(previous, p.UserID)
		}
	}

	candidate, err := s.deps.Selector.SelectCandidate(decision.constraints(), pool, previous)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNoEligibleCandidate) {
			decision.warning = warningNoCandidate
			return decision, nil
		}
		return nil, err
	}
	decision.candidate = candidate
	return decision, nil
}

// buildPool joins the organization's attorneys with their expertise in the
// case's practice area and their latest workload. Attorneys without a
// snapshot count as idle.
func (s *AssignmentService) buildPool(ctx context.Context, attrs models.CaseAttributes, exclude map[string]struct{}) ([]models.Candidate, error) {
	area := attrs.Area()
	ids, err := s.deps.Cases.ListActiveAttorneys(ctx, attrs.OrganizationID, area)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attorneys")
	}
	filtered := ids[:0:0]
	for _, id := range ids {
		if _, skip := exclude[id]; !skip {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 {
		return nil, nil
	}
	scores, err := s.deps.Expertise.ScoresForArea(ctx, area, filtered)
	if err != nil {
		return nil, err
	}
	loads, err := s.deps.Workloads.LatestByAttorney(ctx, filtered)
	if err != nil {
		return nil, err
	}
	pool := make([]models.Candidate, 0, len(filtered))
	for _, id := range filtered {
		load := loads[id]
		pool = append(pool, models.Candidate{
			UserID:             id,
			ExpertiseScore:     scores[id],
			CapacityPercentage: load.CapacityPercentage,
			ActiveCasesCount:   load.ActiveCasesCount,
		})
	}
	return pool, nil
}

func (s *AssignmentService) unassigned(ctx context.Context, attrs models.CaseAttributes, assignmentType string, decision *autoDecision) *models.AssignmentOutcome {
	s.deps.Metrics.RecordAssignment(assignmentType, outcomeUnassigned)
	outcome := &models.AssignmentOutcome{Assigned: false, Warning: decision.warning}
	fields := []zap.Field{zap.String("case_id", attrs.CaseID), zap.String("reason", decision.warning)}
	if decision.match != nil {
		outcome.RuleID = &decision.match.Rule.ID
		fields = append(fields, zap.String("rule_id", decision.match.Rule.ID), zap.Int("pool_size", len(decision.pool)))
	}
	s.deps.Logger.Warn("automatic assignment left case unassigned", fields...)
	if err := s.deps.Notifier.NotifyUnassigned(ctx, attrs, decision.warning); err != nil {
		s.deps.Logger.Warn("admin notification failed", zap.String("case_id", attrs.CaseID), zap.Error(err))
	}
	return outcome
}

func (s *AssignmentService) loadCase(ctx context.Context, caseID string, actor *models.JWTClaims) (*models.CaseAttributes, error) {
	attrs, err := s.deps.Cases.GetCaseAttributes(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case")
	}
	if actor != nil && actor.OrganizationID != "" && actor.OrganizationID != attrs.OrganizationID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
	}
	return attrs, nil
}

func (s *AssignmentService) refresh(ctx context.Context, attorneyIDs ...string) {
	if s.deps.Refresher == nil || len(attorneyIDs) == 0 {
		return
	}
	s.deps.Refresher.Refresh(context.WithoutCancel(ctx), attorneyIDs...)
}

func actorID(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func firstString(values ...*string) *string {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
