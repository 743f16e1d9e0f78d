package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/bootstrap"
	"github.com/noah-isme/campus-attendance-api/internal/repository"
	"github.com/noah-isme/campus-attendance-api/internal/service"
	"github.com/noah-isme/campus-attendance-api/internal/worker"
	"github.com/noah-isme/campus-attendance-api/pkg/broker"
	"github.com/noah-isme/campus-attendance-api/pkg/config"
	"github.com/noah-isme/campus-attendance-api/pkg/jobs"
	"github.com/noah-isme/campus-attendance-api/pkg/logger"
)

const metricsAddr = ":9102"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "enrollment-worker")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()

	store, err := bootstrap.OpenStore(ctx, cfg, metricsSvc, logr)
	if err != nil {
		logr.Fatal("failed to open document store", zap.Error(err))
	}
	defer store.Close() //nolint:errcheck

	redisClient, err := broker.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	enrollmentSvc := service.NewEnrollmentService(
		repository.NewCourseRepository(store),
		repository.NewUserRepository(store),
		metricsSvc,
		logr,
	)
	repairWorker := worker.NewRepairWorker(enrollmentSvc, metricsSvc, logr)

	queue := jobs.NewQueue("enrollment-repair", repairWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Repair.Workers,
		MaxRetries: cfg.Repair.MaxRetries,
		RetryDelay: cfg.Repair.RetryDelay,
		OnDead:     repairWorker.DeadLetter,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: metricsSvc.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer metricsSrv.Close() //nolint:errcheck

	source := broker.NewRepairQueue(redisClient, cfg.Repair.QueueKey, logr).Consume(ctx)
	logr.Info("enrollment worker started",
		zap.String("queue", cfg.Repair.QueueKey),
		zap.String("store", store.Driver),
		zap.Int("workers", cfg.Repair.Workers),
	)

	if err := repairWorker.Pump(ctx, source, queue); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("repair pump stopped", zap.Error(err))
	}
	logr.Info("enrollment worker stopped")
}
