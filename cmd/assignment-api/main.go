package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/handler"
	"github.com/noah-isme/case-assignment-api/internal/models"
	"github.com/noah-isme/case-assignment-api/internal/repository"
	"github.com/noah-isme/case-assignment-api/internal/service"
	"github.com/noah-isme/case-assignment-api/pkg/cache"
	"github.com/noah-isme/case-assignment-api/pkg/config"
	"github.com/noah-isme/case-assignment-api/pkg/database"
	"github.com/noah-isme/case-assignment-api/pkg/jobs"
	"github.com/noah-isme/case-assignment-api/pkg/logger"
	"github.com/noah-isme/case-assignment-api/pkg/storage"
)

// @title Case Assignment API
// @version 1.0.0
// @description Rule-driven attorney assignment, transfers and workload tracking for legal cases.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const exportCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running without cache and job lock", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	app, err := build(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}
	defer app.close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, app, logr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	metrics     *service.MetricsService
	auth        *service.AuthService
	assignments *handler.AssignmentHandler
	transfers   *handler.TransferHandler
	rules       *handler.RuleHandler
	attorneys   *handler.AttorneyHandler
	exports     *handler.ExportHandler
	ops         *handler.MetricsHandler

	job   *service.WorkloadJob
	queue *jobs.Queue
}

func (a *application) close() {
	if a.job != nil {
		a.job.Stop()
	}
	if a.queue != nil {
		a.queue.Stop()
	}
}

func build(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	var locker *cache.Locker
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		locker = cache.NewLocker(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Workload.CacheTTL, logr, redisClient != nil)

	caseRepo := repository.NewCaseRepository(db)
	assignmentRepo := repository.NewCaseAssignmentRepository(db)
	historyRepo := repository.NewAssignmentHistoryRepository(db)
	ruleRepo := repository.NewAssignmentRuleRepository(db)
	expertiseRepo := repository.NewAttorneyExpertiseRepository(db)
	transferRepo := repository.NewTransferRequestRepository(db)
	workloadRepo := repository.NewWorkloadRepository(db)

	txRunner := database.NewTxRunner(db, database.TxRunnerConfig{
		MaxRetries: cfg.Assignment.TxMaxRetries,
		BaseDelay:  cfg.Assignment.TxRetryBase,
		MaxDelay:   cfg.Assignment.TxRetryMax,
	}, logr)
	lifecycle := service.NewAssignmentLifecycle(assignmentRepo, historyRepo, txRunner, service.NewCaseLocker(), logr,
		service.WithDefaultWorkloadWeight(cfg.Assignment.DefaultWeight),
		service.WithLifecycleMetrics(metrics),
	)

	workloadSvc := service.NewWorkloadService(workloadRepo, assignmentRepo, caseRepo, cacheSvc, metrics,
		cfg.Workload.MaxCapacityPoints, cfg.Workload.CacheTTL, logr)
	job := service.NewWorkloadJob(workloadSvc, lifecycle, locker, service.WorkloadJobConfig{
		Schedule: cfg.Workload.RecalcCron,
		Timezone: cfg.Workload.RecalcTimezone,
		LockTTL:  cfg.Workload.RecalcLockTTL,
	}, logr)

	app := &application{metrics: metrics}
	if cfg.Workload.QueueEnabled {
		app.queue = jobs.NewQueue("workload_refresh", job.Handle, jobs.QueueConfig{
			Workers:    cfg.Workload.QueueWorkers,
			MaxRetries: cfg.Workload.QueueRetries,
			Logger:     logr,
		})
		app.queue.Start(ctx)
		job.UseQueue(app.queue)
	}
	if cfg.Workload.RecalcEnabled {
		if err := job.Start(ctx); err != nil {
			return nil, fmt.Errorf("start workload job: %w", err)
		}
		app.job = job
	}

	expertiseSvc := service.NewExpertiseService(expertiseRepo, cfg.Scoring, validate, logr)
	primaryRole := models.RoleType(cfg.Assignment.PrimaryRole)
	assignmentSvc := service.NewAssignmentService(service.AssignmentDeps{
		Cases:       caseRepo,
		Assignments: assignmentRepo,
		History:     historyRepo,
		Rules:       service.NewRuleEngine(ruleRepo, metrics, logr),
		Expertise:   expertiseSvc,
		Workloads:   workloadSvc,
		Selector:    service.NewCandidateSelector(cfg.Scoring),
		Lifecycle:   lifecycle,
		Refresher:   job,
		Notifier:    service.NewLogNotifier(logr),
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		PrimaryRole: primaryRole,
	})
	transferSvc := service.NewTransferService(transferRepo, assignmentRepo, caseRepo, lifecycle, job, metrics, primaryRole, validate, logr)
	ruleSvc := service.NewRuleService(ruleRepo, validate, logr)

	exporter, err := buildExports(ctx, cfg, caseRepo, historyRepo, validate, logr, app)
	if err != nil {
		return nil, err
	}

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	app.auth = service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	app.assignments = handler.NewAssignmentHandler(assignmentSvc, exporter)
	app.transfers = handler.NewTransferHandler(transferSvc)
	app.rules = handler.NewRuleHandler(ruleSvc, assignmentSvc)
	app.attorneys = handler.NewAttorneyHandler(expertiseSvc, workloadSvc)
	app.ops = handler.NewMetricsHandler(metrics, checks)
	return app, nil
}

// buildExports picks S3 when configured and the local signed-URL store otherwise.
// Only the local store serves downloads through this API.
func buildExports(ctx context.Context, cfg *config.Config, cases *repository.CaseRepository, history *repository.AssignmentHistoryRepository, validate *validator.Validate, logr *zap.Logger, app *application) (*service.HistoryExportService, error) {
	if cfg.Exports.S3.Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.Exports.S3, cfg.Exports.SignedURLTTL)
		if err != nil {
			return nil, fmt.Errorf("init s3 export storage: %w", err)
		}
		return service.NewHistoryExportService(cases, history, s3Store, validate, logr), nil
	}

	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	local, err := storage.NewLocalStorage(cfg.Exports.StorageDir, signer, cfg.APIPrefix+"/exports")
	if err != nil {
		return nil, fmt.Errorf("init local export storage: %w", err)
	}
	exporter := service.NewHistoryExportService(cases, history, local, validate, logr)
	exporter.StartCleanup(ctx, local, cfg.Exports.SignedURLTTL*2, exportCleanupInterval)
	app.exports = handler.NewExportHandler(local, logr)
	return exporter, nil
}
