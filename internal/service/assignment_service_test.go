package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/pkg/config"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type caseStub struct {
	cases     map[string]models.CaseAttributes
	attorneys map[string][]string
}

func (s *caseStub) GetCaseAttributes(ctx context.Context, caseID string) (*models.CaseAttributes, error) {
	attrs, ok := s.cases[caseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &attrs, nil
}

func (s *caseStub) ListActiveAttorneys(ctx context.Context, organizationID, practiceArea string) ([]string, error) {
	return s.attorneys[organizationID], nil
}

type ruleSelectorStub struct {
	match *models.RuleMatch
}

func (s *ruleSelectorStub) SelectRule(ctx context.Context, organizationID string, attrs models.CaseAttributes) (*models.RuleMatch, error) {
	return s.match, nil
}

type scorerStub struct {
	scores   map[string]float64
	outcomes map[string]bool
}

func (s *scorerStub) ScoresForArea(ctx context.Context, area string, attorneyIDs []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, id := range attorneyIDs {
		if v, ok := s.scores[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (s *scorerStub) RecordCaseOutcome(ctx context.Context, exec sqlx.ExtContext, attorneyID, area string, successful bool, closedAt time.Time) error {
	if s.outcomes == nil {
		s.outcomes = map[string]bool{}
	}
	s.outcomes[attorneyID] = successful
	return nil
}

type loadStub map[string]models.UserWorkload

func (s loadStub) LatestByAttorney(ctx context.Context, ids []string) (map[string]models.UserWorkload, error) {
	out := map[string]models.UserWorkload{}
	for _, id := range ids {
		if w, ok := s[id]; ok {
			out[id] = w
		}
	}
	return out, nil
}

type refresherStub struct {
	mu  sync.Mutex
	ids []string
}

func (s *refresherStub) Refresh(ctx context.Context, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, ids...)
}

type notifierStub struct {
	reasons []string
}

func (s *notifierStub) NotifyUnassigned(ctx context.Context, attrs models.CaseAttributes, reason string) error {
	s.reasons = append(s.reasons, reason)
	return nil
}

type assignmentHarness struct {
	svc       *AssignmentService
	store     *memStore
	cases     *caseStub
	rules     *ruleSelectorStub
	scorer    *scorerStub
	loads     loadStub
	refresher *refresherStub
	notifier  *notifierStub
	metrics   *MetricsService
}

func newAssignmentHarness() *assignmentHarness {
	store := newMemStore()
	h := &assignmentHarness{
		store: store,
		cases: &caseStub{
			cases: map[string]models.CaseAttributes{
				"case-1": {CaseID: "case-1", OrganizationID: "org-1", CaseType: "Litigation", Priority: "HIGH", PracticeArea: strPtr("Employment"), ClientID: strPtr("client-1")},
			},
			attorneys: map[string][]string{},
		},
		rules:     &ruleSelectorStub{},
		scorer:    &scorerStub{scores: map[string]float64{}},
		loads:     loadStub{},
		refresher: &refresherStub{},
		notifier:  &notifierStub{},
		metrics:   NewMetricsService(),
	}
	h.svc = NewAssignmentService(AssignmentDeps{
		Cases:       h.cases,
		Assignments: store,
		History:     store,
		Rules:       h.rules,
		Expertise:   h.scorer,
		Workloads:   h.loads,
		Selector:    NewCandidateSelector(config.DefaultScoring()),
		Lifecycle:   newTestLifecycle(store, newFixedClock(lifecycleEpoch)),
		Refresher:   h.refresher,
		Notifier:    h.notifier,
		Metrics:     h.metrics,
		PrimaryRole: models.RoleTypeLeadAttorney,
	})
	return h
}

func (h *assignmentHarness) pool(org string, candidates ...models.Candidate) {
	for _, c := range candidates {
		h.cases.attorneys[org] = append(h.cases.attorneys[org], c.UserID)
		h.scorer.scores[c.UserID] = c.ExpertiseScore
		h.loads[c.UserID] = models.UserWorkload{UserID: c.UserID, CapacityPercentage: c.CapacityPercentage, ActiveCasesCount: c.ActiveCasesCount}
	}
}

func ruleMatch(min, max float64, preferPrevious bool) *models.RuleMatch {
	return &models.RuleMatch{Rule: models.AssignmentRule{
		ID:                     "rule-1",
		OrganizationID:         "org-1",
		RuleName:               "employment",
		Active:                 true,
		MinExpertiseScore:      min,
		MaxWorkloadPercentage:  max,
		PreferPreviousAttorney: preferPrevious,
	}}
}

var supervisor = &models.JWTClaims{UserID: "admin-1", OrganizationID: "org-1", Role: models.RoleSupervisor}

func TestAssignCasePicksBestEligibleAttorney(t *testing.T) {
	h := newAssignmentHarness()
	h.rules.match = ruleMatch(60, 80, false)
	h.pool("org-1",
		models.Candidate{UserID: "attorney-a", ExpertiseScore: 75, CapacityPercentage: 50},
		models.Candidate{UserID: "attorney-b", ExpertiseScore: 90, CapacityPercentage: 85},
	)

	outcome, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{}, supervisor)
	require.NoError(t, err)
	require.True(t, outcome.Assigned)
	assert.Equal(t, "attorney-a", outcome.Assignment.UserID)
	assert.Equal(t, models.AssignmentTypeRuleBased, outcome.Assignment.AssignmentType)
	assert.Equal(t, "rule-1", *outcome.Assignment.RuleID)
	assert.Equal(t, 75.0, *outcome.Assignment.ExpertiseMatchScore)
	assert.Equal(t, models.RoleTypeLeadAttorney, outcome.Assignment.RoleType)
	assert.Equal(t, []string{"attorney-a"}, h.refresher.ids)

	history := h.store.historyFor("case-1")
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryAssigned, history[0].Action)
	assert.Equal(t, "admin-1", *history[0].PerformedBy)
	assert.Contains(t, string(history[0].Metadata), `"ruleId":"rule-1"`)
}

func TestAssignCasePrefersPreviousAttorney(t *testing.T) {
	h := newAssignmentHarness()
	h.rules.match = ruleMatch(60, 80, true)
	h.pool("org-1",
		models.Candidate{UserID: "attorney-c", ExpertiseScore: 65, CapacityPercentage: 79},
		models.Candidate{UserID: "attorney-d", ExpertiseScore: 95, CapacityPercentage: 30},
	)
	h.store.previous["case-1"] = []models.PreviousAttorney{{UserID: "attorney-c"}}

	outcome, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, "attorney-c", outcome.Assignment.UserID)
}

func TestAssignCaseAppliesRuleActions(t *testing.T) {
	h := newAssignmentHarness()
	match := ruleMatch(0, 100, false)
	match.Actions = models.RuleActions{WorkloadWeight: floatPtr(2.5), RoleType: strPtr("ASSOCIATE"), Notes: strPtr("vip client")}
	h.rules.match = match
	h.pool("org-1", models.Candidate{UserID: "attorney-a", ExpertiseScore: 70})

	outcome, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.RoleTypeAssociate, outcome.Assignment.RoleType)
	assert.Equal(t, 2.5, outcome.Assignment.WorkloadWeight)
	assert.Equal(t, "vip client", *outcome.Assignment.Notes)
}

func TestAssignCaseWithoutRuleWarns(t *testing.T) {
	h := newAssignmentHarness()

	outcome, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{}, supervisor)
	require.NoError(t, err)
	assert.False(t, outcome.Assigned)
	assert.Equal(t, warningNoRule, outcome.Warning)
	assert.Equal(t, []string{warningNoRule}, h.notifier.reasons)
	assert.Empty(t, h.store.historyFor("case-1"))
}

func TestAssignCaseWithoutCandidateWarns(t *testing.T) {
	h := newAssignmentHarness()
	h.rules.match = ruleMatch(90, 50, false)
	h.pool("org-1", models.Candidate{UserID: "attorney-a", ExpertiseScore: 70, CapacityPercentage: 60})

	outcome, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{}, supervisor)
	require.NoError(t, err)
	assert.False(t, outcome.Assigned)
	assert.Equal(t, warningNoCandidate, outcome.Warning)
	assert.Equal(t, "rule-1", *outcome.RuleID)
	assert.Len(t, h.notifier.reasons, 1)
	assert.Empty(t, h.store.active("case-1"))
}

func TestAssignCaseManual(t *testing.T) {
	h := newAssignmentHarness()
	user := "5b8e2a4c-7d1f-4f7e-9a51-0c3e1b2d4f60"

	outcome, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{UserID: &user, WorkloadWeight: floatPtr(3)}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, user, outcome.Assignment.UserID)
	assert.Equal(t, models.AssignmentTypeManual, outcome.Assignment.AssignmentType)
	assert.Equal(t, 3.0, outcome.Assignment.WorkloadWeight)
	assert.Nil(t, outcome.Assignment.RuleID)

	_, err = h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{UserID: &user}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrOverlappingAssignment))
}

func TestAssignCaseScopedToOrganization(t *testing.T) {
	h := newAssignmentHarness()
	outsider := &models.JWTClaims{UserID: "x", OrganizationID: "org-2"}

	_, err := h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{}, outsider)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	_, err = h.svc.AssignCase(context.Background(), "missing", dto.AssignCaseRequest{}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	bad := "not-a-uuid"
	_, err = h.svc.AssignCase(context.Background(), "case-1", dto.AssignCaseRequest{UserID: &bad}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestReassignCaseAutomaticExcludesCurrentHolder(t *testing.T) {
	h := newAssignmentHarness()
	h.rules.match = ruleMatch(0, 100, false)
	h.pool("org-1",
		models.Candidate{UserID: "attorney-a", ExpertiseScore: 95, CapacityPercentage: 10},
		models.Candidate{UserID: "attorney-b", ExpertiseScore: 70, CapacityPercentage: 40},
	)
	ctx := context.Background()

	first, err := h.svc.AssignCase(ctx, "case-1", dto.AssignCaseRequest{}, supervisor)
	require.NoError(t, err)
	require.Equal(t, "attorney-a", first.Assignment.UserID)

	outcome, err := h.svc.ReassignCase(ctx, "case-1", dto.ReassignCaseRequest{Reason: "rebalancing"}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, "attorney-b", outcome.Assignment.UserID)
	require.NotNil(t, outcome.Previous)
	assert.Equal(t, "attorney-a", outcome.Previous.UserID)
	assert.ElementsMatch(t, []string{"attorney-a", "attorney-b", "attorney-a"}, h.refresher.ids)

	history := h.store.historyFor("case-1")
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryReassigned, history[1].Action)
}

func TestReassignCaseExplicit(t *testing.T) {
	h := newAssignmentHarness()
	ctx := context.Background()
	from := "0f6b2d1e-3c4a-4b5d-8e9f-a0b1c2d3e4f5"
	to := "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"

	_, err := h.svc.AssignCase(ctx, "case-1", dto.AssignCaseRequest{UserID: &from}, supervisor)
	require.NoError(t, err)

	outcome, err := h.svc.ReassignCase(ctx, "case-1", dto.ReassignCaseRequest{NewUserID: &to, Reason: "client request"}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, to, outcome.Assignment.UserID)
	assert.Equal(t, models.AssignmentTypeManual, outcome.Assignment.AssignmentType)

	_, err = h.svc.ReassignCase(ctx, "case-1", dto.ReassignCaseRequest{NewUserID: &to}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation), "reason is required")
}

func TestReleaseCaseRecordsOutcome(t *testing.T) {
	h := newAssignmentHarness()
	ctx := context.Background()
	user := "0f6b2d1e-3c4a-4b5d-8e9f-a0b1c2d3e4f5"
	_, err := h.svc.AssignCase(ctx, "case-1", dto.AssignCaseRequest{UserID: &user}, supervisor)
	require.NoError(t, err)

	won := true
	released, err := h.svc.ReleaseCase(ctx, "case-1", dto.ReleaseCaseRequest{Reason: "settled", Successful: &won}, supervisor)
	require.NoError(t, err)
	assert.Len(t, released, 1)
	assert.Equal(t, map[string]bool{user: true}, h.scorer.outcomes)

	active, err := h.svc.ActiveAssignments(ctx, "case-1", supervisor)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeactivateAssignmentAndHistoryPaging(t *testing.T) {
	h := newAssignmentHarness()
	ctx := context.Background()
	user := "0f6b2d1e-3c4a-4b5d-8e9f-a0b1c2d3e4f5"
	outcome, err := h.svc.AssignCase(ctx, "case-1", dto.AssignCaseRequest{UserID: &user}, supervisor)
	require.NoError(t, err)

	row, err := h.svc.DeactivateAssignment(ctx, outcome.Assignment.ID, dto.DeactivateAssignmentRequest{ReasonCode: models.HistoryRemoved}, supervisor)
	require.NoError(t, err)
	assert.False(t, row.Active)

	_, err = h.svc.DeactivateAssignment(ctx, "missing", dto.DeactivateAssignmentRequest{ReasonCode: models.HistoryRemoved}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	entries, page, err := h.svc.History(ctx, "case-1", 1, 1, supervisor)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryAssigned, entries[0].Action)
	assert.Equal(t, 2, page.TotalCount)

	entries, _, err = h.svc.History(ctx, "case-1", 2, 1, supervisor)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryRemoved, entries[0].Action)
}

func TestPreviewDoesNotAssign(t *testing.T) {
	h := newAssignmentHarness()
	h.rules.match = ruleMatch(60, 80, false)
	h.pool("org-1",
		models.Candidate{UserID: "attorney-a", ExpertiseScore: 75, CapacityPercentage: 50},
		models.Candidate{UserID: "attorney-b", ExpertiseScore: 90, CapacityPercentage: 85},
	)

	result, err := h.svc.Preview(context.Background(), "case-1", supervisor)
	require.NoError(t, err)
	assert.True(t, result.Matched)
	require.NotNil(t, result.Candidate)
	assert.Equal(t, "attorney-a", result.Candidate.UserID)
	assert.Len(t, result.Pool, 1)
	assert.Empty(t, h.store.historyFor("case-1"))
	assert.Empty(t, h.notifier.reasons)
}
