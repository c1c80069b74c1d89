package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/case-assignment-api/internal/repository"
	"github.com/noah-isme/case-assignment-api/internal/service"
	"github.com/noah-isme/case-assignment-api/pkg/cache"
	"github.com/noah-isme/case-assignment-api/pkg/config"
	"github.com/noah-isme/case-assignment-api/pkg/database"
	"github.com/noah-isme/case-assignment-api/pkg/logger"
)

func main() {
	var (
		attorneyID string
		orgID      string
		asOfRaw    string
		timeout    time.Duration
	)
	flag.StringVar(&attorneyID, "attorney", "", "Recalculate a single attorney")
	flag.StringVar(&orgID, "org", "", "Recalculate one organization")
	flag.StringVar(&asOfRaw, "as-of", "", "Snapshot time (RFC3339). Defaults to now")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "Overall timeout")
	flag.Parse()

	asOf := time.Now().UTC()
	if asOfRaw != "" {
		parsed, err := time.Parse(time.RFC3339, asOfRaw)
		if err != nil {
			log.Fatalf("invalid -as-of: %v", err)
		}
		asOf = parsed.UTC()
	}

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
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	var cacheSvc *service.CacheService
	var locker *cache.Locker
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, cached snapshots will not be invalidated", zap.Error(err))
		} else {
			defer client.Close()
			cacheSvc = service.NewCacheService(repository.NewCacheRepository(client, logr), metrics, cfg.Workload.CacheTTL, logr, true)
			locker = cache.NewLocker(client)
		}
	}

	assignments := repository.NewCaseAssignmentRepository(db)
	workload := service.NewWorkloadService(
		repository.NewWorkloadRepository(db),
		assignments,
		repository.NewCaseRepository(db),
		cacheSvc,
		metrics,
		cfg.Workload.MaxCapacityPoints,
		cfg.Workload.CacheTTL,
		logr,
	)

	var result interface{}
	switch {
	case attorneyID != "":
		result, err = workload.Recalculate(ctx, attorneyID, asOf)
	case orgID != "":
		result, err = workload.RecalculateOrganization(ctx, orgID, asOf)
	default:
		txRunner := database.NewTxRunner(db, database.TxRunnerConfig{
			MaxRetries: cfg.Assignment.TxMaxRetries,
			BaseDelay:  cfg.Assignment.TxRetryBase,
			MaxDelay:   cfg.Assignment.TxRetryMax,
		}, logr)
		lifecycle := service.NewAssignmentLifecycle(assignments, repository.NewAssignmentHistoryRepository(db), txRunner, nil, logr)
		job := service.NewWorkloadJob(workload, lifecycle, locker, service.WorkloadJobConfig{LockTTL: cfg.Workload.RecalcLockTTL}, logr)
		result, err = job.RunOnce(ctx)
	}
	if err != nil {
		logr.Fatal("recalculation failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logr.Fatal("failed to write result", zap.Error(err))
	}
}
