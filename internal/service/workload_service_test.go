package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type workloadRepoStub struct {
	mu        sync.Mutex
	snapshots map[string]models.UserWorkload
	upserts   int
	latest    int
}

func newWorkloadRepoStub() *workloadRepoStub {
	return &workloadRepoStub{snapshots: map[string]models.UserWorkload{}}
}

func (s *workloadRepoStub) Upsert(ctx context.Context, snapshot *models.UserWorkload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.snapshots[snapshot.UserID] = *snapshot
	return nil
}

func (s *workloadRepoStub) Latest(ctx context.Context, userID string) (*models.UserWorkload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest++
	if snap, ok := s.snapshots[userID]; ok {
		return &snap, nil
	}
	return nil, sql.ErrNoRows
}

func (s *workloadRepoStub) LatestByUsers(ctx context.Context, userIDs []string) ([]models.UserWorkload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserWorkload
	for _, id := range userIDs {
		if snap, ok := s.snapshots[id]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

type caseWeightStub struct {
	weights map[string][]models.CaseWeight
	failFor string
}

func (s *caseWeightStub) ListActiveCaseWeights(ctx context.Context, userID string, asOf time.Time) ([]models.CaseWeight, error) {
	if userID == s.failFor {
		return nil, errors.New("query failed")
	}
	return s.weights[userID], nil
}

type directoryStub struct {
	attorneys map[string][]string
	byArea    map[string][]string
	activity  map[string]models.AttorneyActivity
	orgOf     map[string]string
}

func (d *directoryStub) ListActiveAttorneys(ctx context.Context, organizationID, practiceArea string) ([]string, error) {
	if practiceArea != "" && d.byArea != nil {
		return d.byArea[organizationID+"|"+practiceArea], nil
	}
	return d.attorneys[organizationID], nil
}

func (d *directoryStub) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(d.attorneys))
	for id := range d.attorneys {
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *directoryStub) AttorneyOrganization(ctx context.Context, attorneyID string) (string, error) {
	if org, ok := d.orgOf[attorneyID]; ok {
		return org, nil
	}
	return "", sql.ErrNoRows
}

func (d *directoryStub) AttorneyActivity(ctx context.Context, attorneyID string, asOf time.Time) (*models.AttorneyActivity, error) {
	a := d.activity[attorneyID]
	return &a, nil
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache { return &memCache{items: map[string][]byte{}} }

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func TestWorkloadRecalculate(t *testing.T) {
	repo := newWorkloadRepoStub()
	weights := &caseWeightStub{weights: map[string][]models.CaseWeight{
		"a": {
			{CaseID: "case-1", Weight: 2},
			{CaseID: "case-1", Weight: 1},
			{CaseID: "case-2", Weight: 0},
			{CaseID: "case-3", Weight: 1.5},
		},
	}}
	dir := &directoryStub{activity: map[string]models.AttorneyActivity{"a": {BillableHoursWeek: 32.5, OverdueTasksCount: 2, UpcomingDeadlinesCount: 4}}}
	svc := NewWorkloadService(repo, weights, dir, nil, nil, 40, time.Minute, nil)

	asOf := time.Date(2026, 3, 2, 17, 45, 0, 0, time.UTC)
	snap, err := svc.Recalculate(context.Background(), "a", asOf)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.ActiveCasesCount)
	assert.Equal(t, 5.5, snap.TotalWorkloadPoints)
	assert.Equal(t, 13.75, snap.CapacityPercentage)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), snap.CalculationDate)
	assert.Equal(t, 32.5, snap.BillableHoursWeek)
	assert.JSONEq(t, `{"case-1":3,"case-2":1,"case-3":1.5}`, string(snap.Details))

	again, err := svc.Recalculate(context.Background(), "a", asOf)
	require.NoError(t, err)
	assert.Equal(t, snap.CapacityPercentage, again.CapacityPercentage)
	assert.Equal(t, snap.CalculationDate, again.CalculationDate)
}

func TestWorkloadRecalculateNoAssignments(t *testing.T) {
	svc := NewWorkloadService(newWorkloadRepoStub(), &caseWeightStub{}, &directoryStub{}, nil, nil, 0, 0, nil)
	snap, err := svc.Recalculate(context.Background(), "idle", time.Now())
	require.NoError(t, err)
	assert.Zero(t, snap.ActiveCasesCount)
	assert.Zero(t, snap.CapacityPercentage)
	assert.Equal(t, 40.0, snap.MaxCapacityPoints)
	assert.JSONEq(t, `{}`, string(snap.Details))
}

func TestWorkloadSnapshotReadsThroughCache(t *testing.T) {
	repo := newWorkloadRepoStub()
	metrics := NewMetricsService()
	cache := NewCacheService(newMemCache(), metrics, time.Minute, nil, true)
	weights := &caseWeightStub{weights: map[string][]models.CaseWeight{"a": {{CaseID: "case-1", Weight: 4}}}}
	svc := NewWorkloadService(repo, weights, &directoryStub{}, cache, metrics, 40, time.Minute, nil)
	ctx := context.Background()

	_, _, err := svc.Snapshot(ctx, "a", nil)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	_, err = svc.Recalculate(ctx, "a", time.Now())
	require.NoError(t, err)

	first, hit, err := svc.Snapshot(ctx, "a", nil)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := svc.Snapshot(ctx, "a", nil)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first.CapacityPercentage, second.CapacityPercentage)
	assert.Equal(t, 2, repo.latest, "the second read is served from cache")

	weights.weights["a"] = append(weights.weights["a"], models.CaseWeight{CaseID: "case-2", Weight: 4})
	_, err = svc.Recalculate(ctx, "a", time.Now())
	require.NoError(t, err)
	third, _, err := svc.Snapshot(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 20.0, third.CapacityPercentage, "recalculation invalidates the cached snapshot")
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheHits)
}

func TestWorkloadRecalculateOrganizationCountsFailures(t *testing.T) {
	repo := newWorkloadRepoStub()
	dir := &directoryStub{attorneys: map[string][]string{"org-1": {"a", "b", "c"}, "org-2": {"d"}}}
	svc := NewWorkloadService(repo, &caseWeightStub{failFor: "b"}, dir, nil, NewMetricsService(), 40, 0, nil)

	summary, err := svc.RecalculateOrganization(context.Background(), "org-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Attorneys)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	summaries, err := svc.RecalculateAll(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
	assert.Len(t, repo.snapshots, 3)
}

func TestWorkloadLatestByAttorney(t *testing.T) {
	repo := newWorkloadRepoStub()
	repo.snapshots["a"] = models.UserWorkload{UserID: "a", CapacityPercentage: 50}
	svc := NewWorkloadService(repo, &caseWeightStub{}, &directoryStub{}, nil, nil, 40, 0, nil)

	got, err := svc.LatestByAttorney(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 50.0, got["a"].CapacityPercentage)
}

func TestWorkloadScopedToActorOrganization(t *testing.T) {
	repo := newWorkloadRepoStub()
	dir := &directoryStub{orgOf: map[string]string{"a": "org-1", "z": "org-2"}}
	svc := NewWorkloadService(repo, &caseWeightStub{}, dir, nil, NewMetricsService(), 40, 0, nil)
	ctx := context.Background()
	actor := &models.JWTClaims{UserID: "sup-1", OrganizationID: "org-1", Role: models.RoleSupervisor}

	_, err := svc.RecalculateFor(ctx, "a", time.Now(), actor)
	require.NoError(t, err)
	snap, _, err := svc.Snapshot(ctx, "a", actor)
	require.NoError(t, err)
	assert.Equal(t, "a", snap.UserID)

	_, err = svc.RecalculateFor(ctx, "z", time.Now(), actor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	_, _, err = svc.Snapshot(ctx, "z", actor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
	_, _, err = svc.Snapshot(ctx, "unknown", actor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))

	assert.Equal(t, 1, repo.upserts, "the foreign attorney is never recalculated")
}
