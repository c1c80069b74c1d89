package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/pkg/cache"
	"github.com/noah-isme/case-assignment-api/pkg/jobs"
)

// JobTypeRecalculateAttorney refreshes one attorney's workload snapshot.
const JobTypeRecalculateAttorney = "workload.recalculate_attorney"

const (
	recalculationLockKey = "locks:workload:recalculation"
	expirySweepBatch     = 500
)

type workloadRecalculator interface {
	Recalculate(ctx context.Context, attorneyID string, asOf time.Time) (*models.UserWorkload, error)
	RecalculateAll(ctx context.Context, asOf time.Time) ([]models.RecalculationSummary, error)
}

type lapsedExpirer interface {
	ExpireLapsed(ctx context.Context, asOf time.Time, limit int) (int, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) (bool, error)
}

// WorkloadJobConfig configures the recurring recalculation.
type WorkloadJobConfig struct {
	Schedule string
	Timezone string
	LockTTL  time.Duration
}

// WorkloadJob runs the nightly recalculation and on-demand refreshes.
type WorkloadJob struct {
	workload workloadRecalculator
	expirer  lapsedExpirer
	locker   *cache.Locker
	queue    jobEnqueuer
	cfg      WorkloadJobConfig
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewWorkloadJob constructs the job. A nil locker runs every pass without
// cross-instance coordination.
func NewWorkloadJob(workload workloadRecalculator, expirer lapsedExpirer, locker *cache.Locker, cfg WorkloadJobConfig, logger *zap.Logger) *WorkloadJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 2 * * *"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &WorkloadJob{
		workload: workload,
		expirer:  expirer,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.With(zap.String("job", "workload_recalculation")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UseQueue routes Refresh calls through the queue instead of running them inline.
func (j *WorkloadJob) UseQueue(queue jobEnqueuer) {
	j.queue = queue
}

// Start registers the cron schedule and starts the scheduler.
func (j *WorkloadJob) Start(ctx context.Context) error {
	loc := time.UTC
	if j.cfg.Timezone != "" {
		l, err := time.LoadLocation(j.cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load recalculation timezone %q: %w", j.cfg.Timezone, err)
		}
		loc = l
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(j.cfg.Schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Error("scheduled recalculation failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule workload recalculation %q: %w", j.cfg.Schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("workload recalculation scheduled", zap.String("schedule", j.cfg.Schedule), zap.String("timezone", loc.String()))
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (j *WorkloadJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce expires lapsed assignments and recalculates every organization. It
// is skipped when another instance holds the recalculation lock.
func (j *WorkloadJob) RunOnce(ctx context.Context) (models.RecalculationRun, error) {
	run := models.RecalculationRun{StartedAt: j.now()}

	if j.locker != nil {
		lock, err := j.locker.Acquire(ctx, recalculationLockKey, j.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				j.logger.Info("recalculation already running elsewhere")
				run.Skipped = true
				return run, nil
			}
			return run, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				j.logger.Warn("failed to release recalculation lock", zap.Error(err))
			}
		}()
	}

	if j.expirer != nil {
		expired, err := j.expirer.ExpireLapsed(ctx, run.StartedAt, expirySweepBatch)
		if err != nil {
			j.logger.Error("expiry sweep failed", zap.Error(err))
		}
		run.Expired = expired
	}

	summaries, err := j.workload.RecalculateAll(ctx, run.StartedAt)
	run.Organizations = summaries
	if err != nil {
		return run, err
	}
	j.logger.Info("recalculation pass finished",
		zap.Int("organizations", len(summaries)),
		zap.Int("expired", run.Expired),
		zap.Duration("duration", j.now().Sub(run.StartedAt)),
	)
	return run, nil
}

// Refresh recalculates the given attorneys, through the queue when one is
// attached. Errors are logged; callers have already committed their change.
func (j *WorkloadJob) Refresh(ctx context.Context, attorneyIDs ...string) {
	seen := make(map[string]struct{}, len(attorneyIDs))
	for _, id := range attorneyIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if j.queue != nil {
			_, err := j.queue.Enqueue(jobs.Job{Type: JobTypeRecalculateAttorney, Key: id, Payload: id})
			if err == nil {
				continue
			}
			j.logger.Warn("enqueue recalculation failed, running inline", zap.String("user_id", id), zap.Error(err))
		}
		if _, err := j.workload.Recalculate(ctx, id, j.now()); err != nil {
			j.logger.Error("workload refresh failed", zap.String("user_id", id), zap.Error(err))
		}
	}
}

// Handle is the queue handler for JobTypeRecalculateAttorney.
func (j *WorkloadJob) Handle(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeRecalculateAttorney {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	attorneyID, ok := job.Payload.(string)
	if !ok || attorneyID == "" {
		attorneyID = job.Key
	}
	if attorneyID == "" {
		return errors.New("recalculation job without attorney id")
	}
	_, err := j.workload.Recalculate(ctx, attorneyID, j.now())
	return err
}
