package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/dto"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/internal/repository"
	"github.com/noah-isme/case-assignment-api/pkg/database"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type transferRepoStub struct {
	mu        sync.Mutex
	items     map[string]*models.CaseTransferRequest
	createErr error
}

func newTransferRepoStub() *transferRepoStub {
	return &transferRepoStub{items: map[string]*models.CaseTransferRequest{}}
}

func (s *transferRepoStub) Create(ctx context.Context, request *models.CaseTransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *request
	s.items[request.ID] = &cp
	return nil
}

func (s *transferRepoStub) FindByID(ctx context.Context, id string) (*models.CaseTransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.items[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (s *transferRepoStub) HasPending(ctx context.Context, caseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.items {
		if r.CaseID == caseID && r.Status == models.TransferPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *transferRepoStub) MarkProcessed(ctx context.Context, exec sqlx.ExtContext, params repository.MarkProcessedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[params.ID]
	if !ok || r.Status != models.TransferPending {
		return sql.ErrNoRows
	}
	r.Status = params.Status
	r.ApprovedBy = &params.ApprovedBy
	r.ApprovalNotes = params.ApprovalNotes
	at := params.ProcessedAt
	r.ProcessedAt = &at
	return nil
}

func (s *transferRepoStub) List(ctx context.Context, filter models.TransferFilter) ([]models.CaseTransferRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CaseTransferRequest
	for _, r := range s.items {
		if filter.CaseID == "" || r.CaseID == filter.CaseID {
			out = append(out, *r)
		}
	}
	return out, len(out), nil
}

const (
	fromAttorney = "0f6b2d1e-3c4a-4b5d-8e9f-a0b1c2d3e4f5"
	toAttorney   = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	transferCase = "7c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f"
)

type transferHarness struct {
	svc       *TransferService
	repo      *transferRepoStub
	store     *memStore
	lifecycle *AssignmentLifecycle
	refresher *refresherStub
}

func newTransferHarness(t *testing.T) *transferHarness {
	t.Helper()
	store := newMemStore()
	lifecycle := newTestLifecycle(store, newFixedClock(lifecycleEpoch))
	cases := &caseStub{cases: map[string]models.CaseAttributes{
		transferCase: {CaseID: transferCase, OrganizationID: "org-1", CaseType: "Litigation"},
	}}
	h := &transferHarness{
		repo:      newTransferRepoStub(),
		store:     store,
		lifecycle: lifecycle,
		refresher: &refresherStub{},
	}
	h.svc = NewTransferService(h.repo, store, cases, lifecycle, h.refresher, NewMetricsService(), models.RoleTypeLeadAttorney, nil, nil)

	_, err := lifecycle.Create(context.Background(), CreateAssignmentParams{CaseID: transferCase, UserID: fromAttorney, RoleType: models.RoleTypeLeadAttorney})
	require.NoError(t, err)
	return h
}

func validTransfer() dto.CreateTransferRequest {
	return dto.CreateTransferRequest{CaseID: transferCase, FromUserID: fromAttorney, ToUserID: toAttorney, Reason: "conflict"}
}

func TestRequestTransfer(t *testing.T) {
	h := newTransferHarness(t)
	ctx := context.Background()

	request, err := h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.TransferPending, request.Status)
	assert.Equal(t, models.UrgencyMedium, request.Urgency)
	assert.Equal(t, "admin-1", request.RequestedBy)

	_, err = h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestRequestTransferRequiresCurrentHolder(t *testing.T) {
	h := newTransferHarness(t)
	req := validTransfer()
	req.FromUserID, req.ToUserID = toAttorney, fromAttorney

	_, err := h.svc.RequestTransfer(context.Background(), req, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStateTransition))

	same := validTransfer()
	same.ToUserID = same.FromUserID
	_, err = h.svc.RequestTransfer(context.Background(), same, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestRequestTransferMapsPendingIndexViolation(t *testing.T) {
	h := newTransferHarness(t)
	h.repo.createErr = &pq.Error{Code: database.CodeUniqueViolation, Constraint: repository.PendingTransferIndex}

	_, err := h.svc.RequestTransfer(context.Background(), validTransfer(), supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))
}

func TestProcessTransferApproveMovesAssignment(t *testing.T) {
	h := newTransferHarness(t)
	ctx := context.Background()
	request, err := h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	require.NoError(t, err)

	result, err := h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferApproved, Notes: "ok"}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.TransferApproved, result.Request.Status)
	require.NotNil(t, result.Assignment)
	assert.Equal(t, toAttorney, result.Assignment.Current.UserID)
	assert.Equal(t, fromAttorney, result.Assignment.Previous.UserID)

	active := h.store.active(transferCase)
	require.Len(t, active, 1)
	assert.Equal(t, toAttorney, active[0].UserID)

	history := h.store.historyFor(transferCase)
	require.Len(t, history, 2)
	assert.Equal(t, models.HistoryTransferred, history[1].Action)
	assert.Contains(t, string(history[1].Metadata), request.ID)
	assert.ElementsMatch(t, []string{fromAttorney, toAttorney}, h.refresher.ids)

	stored, err := h.repo.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferApproved, stored.Status)
	assert.Equal(t, "ok", *stored.ApprovalNotes)
}

func TestProcessTransferTwiceFails(t *testing.T) {
	h := newTransferHarness(t)
	ctx := context.Background()
	request, err := h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	require.NoError(t, err)

	_, err = h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferApproved}, supervisor)
	require.NoError(t, err)

	_, err = h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferApproved}, supervisor)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStateTransition))
	assert.Len(t, h.store.historyFor(transferCase), 2)
}

func TestProcessTransferConcurrentApprovalsApplyOnce(t *testing.T) {
	h := newTransferHarness(t)
	ctx := context.Background()
	request, err := h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		passed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferApproved}, supervisor)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			passed++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, passed)
	for _, err := range errs {
		assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStateTransition), "unexpected error %v", err)
	}
	assert.Len(t, h.store.historyFor(transferCase), 2)
}

func TestProcessTransferRejectLeavesAssignment(t *testing.T) {
	h := newTransferHarness(t)
	ctx := context.Background()
	request, err := h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	require.NoError(t, err)

	result, err := h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferRejected}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, models.TransferRejected, result.Request.Status)
	assert.Nil(t, result.Assignment)

	active := h.store.active(transferCase)
	require.Len(t, active, 1)
	assert.Equal(t, fromAttorney, active[0].UserID)
	assert.Empty(t, h.refresher.ids)

	_, err = h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferCancelled}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStateTransition))
}

func TestProcessTransferValidationAndScope(t *testing.T) {
	h := newTransferHarness(t)
	ctx := context.Background()
	request, err := h.svc.RequestTransfer(ctx, validTransfer(), supervisor)
	require.NoError(t, err)

	_, err = h.svc.Process(ctx, request.ID, dto.ProcessTransferRequest{Decision: models.TransferPending}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = h.svc.Process(ctx, "missing", dto.ProcessTransferRequest{Decision: models.TransferApproved}, supervisor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	_, err = h.svc.Get(ctx, request.ID, &models.JWTClaims{UserID: "x", OrganizationID: "org-2"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	items, page, err := h.svc.List(ctx, dto.TransferQuery{CaseID: transferCase}, supervisor)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)
}
