// Package main runs the background job worker (email delivery, analytics snapshots).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campus-events/backend/config"
	"github.com/campus-events/backend/internal/analytics"
	"github.com/campus-events/backend/internal/audit"
	"github.com/campus-events/backend/internal/clubs"
	"github.com/campus-events/backend/internal/metrics"
	"github.com/campus-events/backend/internal/notifications"
	"github.com/campus-events/backend/internal/worker"
	"github.com/campus-events/backend/pkg/database"
	"github.com/campus-events/backend/pkg/queue"
	"github.com/campus-events/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	metrics.Init()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	recorder := audit.NewRecorder(audit.NewRepository(pool), logger)
	sender := notifications.NewSender(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName, logger)
	snapshots := analytics.NewService(analytics.NewRepository(pool), clubs.NewRepository(pool), jobQueue, recorder, logger)

	w := worker.New(jobQueue, logger)
	w.Handle(queue.JobTypeEmail, worker.NewEmailProcessor(notifications.NewRepository(pool), sender, logger))
	w.Handle(queue.JobTypeSnapshot, worker.NewSnapshotProcessor(snapshots, logger))

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(workerCtx)
		close(done)
	}()

	metricsSrv := &http.Server{Addr: ":" + cfg.Worker.MetricsPort, Handler: metrics.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	select {
	case <-done:
	case <-time.After(worker.DequeueTimeout + 2*time.Second):
		logger.Warn("worker did not stop in time")
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
