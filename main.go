package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helvetia-cloud/deploy-worker/cleanup"
	"github.com/helvetia-cloud/deploy-worker/config"
	"github.com/helvetia-cloud/deploy-worker/db"
	"github.com/helvetia-cloud/deploy-worker/dockerrt"
	"github.com/helvetia-cloud/deploy-worker/health"
	"github.com/helvetia-cloud/deploy-worker/lock"
	"github.com/helvetia-cloud/deploy-worker/logbus"
	"github.com/helvetia-cloud/deploy-worker/models"
	"github.com/helvetia-cloud/deploy-worker/orchestrator"
	"github.com/helvetia-cloud/deploy-worker/queue"
	"github.com/helvetia-cloud/deploy-worker/strategy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := cfg.NewLogger()

	logger.Info("deploy worker starting",
		"database_url", cfg.DatabaseURL,
		"kv_url", cfg.KVURL,
		"node_env", cfg.NodeEnv,
	)

	database, err := db.Open(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	dockerAdapter, err := dockerrt.NewClient(logger)
	if err != nil {
		log.Fatalf("failed to connect to docker daemon: %v", err)
	}
	defer dockerAdapter.Close()

	redisOptions, err := redis.ParseURL(cfg.KVURL)
	if err != nil {
		log.Fatalf("invalid KV_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOptions)
	defer redisClient.Close()

	statusLock := lock.New(redisClient, logger)
	bus := logbus.New(redisClient, logger)
	registry := strategy.NewDefaultRegistry()

	orch := &orchestrator.Orchestrator{
		Adapter:  dockerAdapter,
		DB:       database,
		Bus:      bus,
		Lock:     statusLock,
		Registry: registry,
		Config:   cfg,
		Logger:   logger,
	}

	qr := queue.New(redisClient, logger, 4)

	scheduler := &cleanup.Scheduler{
		Adapter: dockerAdapter,
		DB:      database,
		Config:  cfg,
		Logger:  logger,
		Queue:   qr,
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := scheduler.Start(rootCtx); err != nil {
		log.Fatalf("failed to start cleanup scheduler: %v", err)
	}
	defer scheduler.Stop()

	deploymentsDone := make(chan struct{})
	go func() {
		defer close(deploymentsDone)
		err := qr.Run(rootCtx, queue.DeploymentsQueueKey, func(ctx context.Context, payload []byte) error {
			return processDeploymentPayload(ctx, orch, payload, logger)
		})
		if err != nil {
			logger.Error("queue runtime exited", "queue", queue.DeploymentsQueueKey, "error", err)
		}
	}()

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		err := qr.Run(rootCtx, queue.ServiceCleanupKey, func(ctx context.Context, payload []byte) error {
			scheduler.RunOnce(ctx)
			return nil
		})
		if err != nil {
			logger.Error("queue runtime exited", "queue", queue.ServiceCleanupKey, "error", err)
		}
	}()

	healthServer := startHealthServer(cfg, redisClient, logger)

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("startup complete, worker ready to consume jobs")

	sig := <-signalChannel
	logger.Info("shutdown signal received", "signal", sig)

	cancelRoot()
	qr.Shutdown(30 * time.Second)
	<-deploymentsDone
	<-cleanupDone

	if healthServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("health server shutdown failed", "error", err)
		}
	}

	logger.Info("worker shut down cleanly")
}

func processDeploymentPayload(ctx context.Context, orch *orchestrator.Orchestrator, payload []byte, logger *slog.Logger) error {
	var job models.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		logger.Error("failed to decode job payload", "error", err)
		return fmt.Errorf("failed to decode job payload: %w", err)
	}
	return orch.Process(ctx, job)
}

// startHealthServer binds the Health & Metrics Surface. Per §4.10, a port
// already in use disables the surface with a warning rather than crashing
// the worker — the queue runtime is the part that matters.
func startHealthServer(cfg *config.Config, redisClient *redis.Client, logger *slog.Logger) *http.Server {
	checker := &health.Checker{Redis: redisClient, StartedAt: time.Now()}
	metrics := health.NewMetrics()
	router := health.Router(checker, metrics, queue.DeploymentsQueueKey)

	addr := fmt.Sprintf(":%d", cfg.WorkerHealthPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("health port already in use, disabling health surface", "addr", addr, "error", err)
		return nil
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server failed", "error", err)
		}
	}()

	logger.Info("health surface listening", "addr", addr)
	return server
}
