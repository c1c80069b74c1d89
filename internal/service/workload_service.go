package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

const workloadCachePrefix = "workload:snapshot:"

type workloadStore interface {
	Upsert(ctx context.Context, snapshot *models.UserWorkload) error
	Latest(ctx context.Context, userID string) (*models.UserWorkload, error)
	LatestByUsers(ctx context.Context, userIDs []string) ([]models.UserWorkload, error)
}

type caseWeightSource interface {
	ListActiveCaseWeights(ctx context.Context, userID string, asOf time.Time) ([]models.CaseWeight, error)
}

type attorneyDirectory interface {
	ListActiveAttorneys(ctx context.Context, organizationID, practiceArea string) ([]string, error)
	ListOrganizationIDs(ctx context.Context) ([]string, error)
	AttorneyOrganization(ctx context.Context, attorneyID string) (string, error)
	AttorneyActivity(ctx context.Context, attorneyID string, asOf time.Time) (*models.AttorneyActivity, error)
}

// WorkloadService computes and serves per-attorney workload snapshots. It is
// the only writer of user workload rows.
type WorkloadService struct {
	repo        workloadStore
	weights     caseWeightSource
	directory   attorneyDirectory
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	maxCapacity float64
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewWorkloadService constructs the service.
func NewWorkloadService(repo workloadStore, weights caseWeightSource, directory attorneyDirectory, cache *CacheService, metrics *MetricsService, maxCapacity float64, cacheTTL time.Duration, logger *zap.Logger) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxCapacity <= 0 {
		maxCapacity = 40
	}
	return &WorkloadService{
		repo:        repo,
		weights:     weights,
		directory:   directory,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		maxCapacity: maxCapacity,
		cacheTTL:    cacheTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Recalculate rebuilds the attorney's snapshot for the day of asOf. Running it
// twice with the same inputs writes the same row.
func (s *WorkloadService) Recalculate(ctx context.Context, attorneyID string, asOf time.Time) (*models.UserWorkload, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = asOf.UTC()

	weights, err := s.weights.ListActiveCaseWeights(ctx, attorneyID, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignments")
	}
	activity, err := s.directory.AttorneyActivity(ctx, attorneyID, asOf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attorney activity")
	}

	details := make(map[string]float64, len(weights))
	var total float64
	for _, w := range weights {
		weight := w.Weight
		if weight <= 0 {
			weight = 1.0
		}
		details[w.CaseID] += weight
		total += weight
	}
	rawDetails, err := json.Marshal(details)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode workload details")
	}

	snapshot := &models.UserWorkload{
		UserID:                 attorneyID,
		CalculationDate:        truncateDay(asOf),
		ActiveCasesCount:       len(details),
		TotalWorkloadPoints:    round2(total),
		CapacityPercentage:     round2(total / s.maxCapacity * 100),
		MaxCapacityPoints:      s.maxCapacity,
		BillableHoursWeek:      activity.BillableHoursWeek,
		OverdueTasksCount:      activity.OverdueTasksCount,
		UpcomingDeadlinesCount: activity.UpcomingDeadlinesCount,
		Details:                types.JSONText(rawDetails),
		LastCalculatedAt:       s.now(),
	}
	if err := s.repo.Upsert(ctx, snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store workload snapshot")
	}
	_ = s.cache.Invalidate(ctx, workloadCachePrefix+attorneyID)

	s.logger.Debug("workload recalculated",
		zap.String("user_id", attorneyID),
		zap.Int("active_cases", snapshot.ActiveCasesCount),
		zap.Float64("capacity_percentage", snapshot.CapacityPercentage),
	)
	return snapshot, nil
}

// RecalculateOrganization refreshes every active attorney of the organization.
// Failures for individual attorneys are logged and counted.
func (s *WorkloadService) RecalculateOrganization(ctx context.Context, organizationID string, asOf time.Time) (models.RecalculationSummary, error) {
	start := time.Now()
	summary := models.RecalculationSummary{OrganizationID: organizationID}

	attorneys, err := s.directory.ListActiveAttorneys(ctx, organizationID, "")
	if err != nil {
		return summary, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attorneys")
	}
	summary.Attorneys = len(attorneys)
	for _, attorneyID := range attorneys {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := s.Recalculate(ctx, attorneyID, asOf); err != nil {
			summary.Failed++
			s.logger.Error("workload recalculation failed",
				zap.String("organization_id", organizationID),
				zap.String("user_id", attorneyID),
				zap.Error(err),
			)
			continue
		}
		summary.Succeeded++
	}
	summary.Duration = time.Since(start)
	s.metrics.ObserveRecalculation(summary.Duration, summary.Failed)

	s.logger.Info("organization workload recalculated",
		zap.String("organization_id", organizationID),
		zap.Int("attorneys", summary.Attorneys),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// RecalculateAll runs RecalculateOrganization for every organization.
func (s *WorkloadService) RecalculateAll(ctx context.Context, asOf time.Time) ([]models.RecalculationSummary, error) {
	orgs, err := s.directory.ListOrganizationIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organizations")
	}
	summaries := make([]models.RecalculationSummary, 0, len(orgs))
	for _, orgID := range orgs {
		summary, err := s.RecalculateOrganization(ctx, orgID, asOf)
		if err != nil {
			if ctx.Err() != nil {
				return summaries, err
			}
			s.logger.Error("organization recalculation failed", zap.String("organization_id", orgID), zap.Error(err))
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// RecalculateFor is Recalculate on behalf of actor, limited to attorneys of the
// actor's organization.
func (s *WorkloadService) RecalculateFor(ctx context.Context, attorneyID string, asOf time.Time, actor *models.JWTClaims) (*models.UserWorkload, error) {
	if err := s.authorizeAttorney(ctx, attorneyID, actor); err != nil {
		return nil, err
	}
	return s.Recalculate(ctx, attorneyID, asOf)
}

// Snapshot returns the attorney's latest snapshot, read through the cache. The
// boolean reports a cache hit. Attorneys outside the actor's organization are
// reported as not found.
func (s *WorkloadService) Snapshot(ctx context.Context, attorneyID string, actor *models.JWTClaims) (*models.UserWorkload, bool, error) {
	if err := s.authorizeAttorney(ctx, attorneyID, actor); err != nil {
		return nil, false, err
	}
	key := workloadCachePrefix + attorneyID
	var cached models.UserWorkload
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	snapshot, err := s.repo.Latest(ctx, attorneyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "no workload snapshot for attorney")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workload snapshot")
	}
	_ = s.cache.Set(ctx, key, snapshot, s.cacheTTL)
	return snapshot, false, nil
}

func (s *WorkloadService) authorizeAttorney(ctx context.Context, attorneyID string, actor *models.JWTClaims) error {
	if actor == nil || actor.OrganizationID == "" {
		return nil
	}
	organizationID, err := s.directory.AttorneyOrganization(ctx, attorneyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attorney not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attorney")
	}
	if organizationID != actor.OrganizationID {
		return appErrors.Clone(appErrors.ErrNotFound, "attorney not found")
	}
	return nil
}

// LatestByAttorney returns the latest snapshot of each attorney that has one.
func (s *WorkloadService) LatestByAttorney(ctx context.Context, attorneyIDs []string) (map[string]models.UserWorkload, error) {
	snapshots, err := s.repo.LatestByUsers(ctx, attorneyIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workload snapshots")
	}
	out := make(map[string]models.UserWorkload, len(snapshots))
	for _, snapshot := range snapshots {
		out[snapshot.UserID] = snapshot
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
