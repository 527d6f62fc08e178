package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/diagnostic-booking/cmd/mainconfig"
	"github.com/wolfman30/diagnostic-booking/internal/app/bootstrap"
	appconfig "github.com/wolfman30/diagnostic-booking/internal/config"
	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.UseMemoryQueue || strings.TrimSpace(cfg.TaskQueueURL) == "" {
		logger.Error("task worker requires TASK_QUEUE_URL and USE_MEMORY_QUEUE=false")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	queue, _ := bootstrap.BuildTaskQueue(cfg, &awsCfg)
	deadLetters := bootstrap.BuildDeadLetterStore(cfg, &awsCfg, logger)
	fx := bootstrap.BuildSideEffects(ctx, cfg, &awsCfg, logger)
	m := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	runner := bootstrap.BuildRunner(cfg, queue, deadLetters, fx, logger, m)
	runner.Start(ctx)
	logger.Info("task worker started",
		"workers", cfg.TaskWorkerCount,
		"queue", cfg.TaskQueueURL,
		"archive", fx.Archive.Enabled(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down task worker")
	cancel()

	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("task worker stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("task worker shutdown timed out")
	}
}
