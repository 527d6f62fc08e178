package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/diagnostic-booking/cmd/mainconfig"
	"github.com/wolfman30/diagnostic-booking/internal/admin"
	"github.com/wolfman30/diagnostic-booking/internal/api/router"
	"github.com/wolfman30/diagnostic-booking/internal/app/bootstrap"
	"github.com/wolfman30/diagnostic-booking/internal/booking"
	appconfig "github.com/wolfman30/diagnostic-booking/internal/config"
	"github.com/wolfman30/diagnostic-booking/internal/consent"
	"github.com/wolfman30/diagnostic-booking/internal/leads"
	"github.com/wolfman30/diagnostic-booking/internal/observability/metrics"
	"github.com/wolfman30/diagnostic-booking/internal/orders"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
	"github.com/wolfman30/diagnostic-booking/internal/proxy"
	"github.com/wolfman30/diagnostic-booking/internal/slots"
	"github.com/wolfman30/diagnostic-booking/internal/summary"
	"github.com/wolfman30/diagnostic-booking/internal/tasks"
	"github.com/wolfman30/diagnostic-booking/internal/thyrocare"
	"github.com/wolfman30/diagnostic-booking/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting diagnostic-booking API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
	}

	a := buildApp(ctx, cfg, awsCfg, logger)
	defer a.close()

	if a.runner != nil {
		a.runner.Start(ctx)
		logger.Info("inline task runner started", "workers", cfg.TaskWorkerCount)
	}

	srv := newServer(cfg, a.handler)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if a.runner != nil {
		a.runner.Wait()
	}
	logger.Info("server stopped")
}

func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// needsAWS reports whether any configured side effect lives in AWS.
func needsAWS(cfg *appconfig.Config) bool {
	if !cfg.UseMemoryQueue && strings.TrimSpace(cfg.TaskQueueURL) != "" {
		return true
	}
	if strings.TrimSpace(cfg.DeadLetterTable) != "" || strings.TrimSpace(cfg.ArchiveBucket) != "" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "ses":
		return true
	case "", "auto":
		return strings.TrimSpace(cfg.EmailFrom) != "" && strings.TrimSpace(cfg.SendGridAPIKey) == ""
	}
	return false
}

func setupMetrics() (http.Handler, *metrics.BookingMetrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.NewBookingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m, reg
}

type app struct {
	handler http.Handler
	// runner is set only when the queue is in memory and must be drained
	// by this process.
	runner *tasks.Runner
	close  func()
}

func buildApp(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *app {
	metricsHandler, m, reg := setupMetrics()
	var closers []func()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		closers = append(closers, pool.Close)
	}
	sqlDB, err := bootstrap.OpenSQL(cfg.DatabaseURL)
	if err != nil {
		logger.Warn("consent audit log disabled", "error", err)
	}
	if sqlDB != nil {
		closers = append(closers, func() { _ = sqlDB.Close() })
	}

	queue, memQueue := bootstrap.BuildTaskQueue(cfg, awsCfg)
	if memQueue != nil {
		closers = append(closers, memQueue.Close)
	}
	publisher := tasks.NewPublisher(queue, logger)
	deadLetters := bootstrap.BuildDeadLetterStore(cfg, awsCfg, logger)
	fx := bootstrap.BuildSideEffects(ctx, cfg, awsCfg, logger)

	upstream := thyrocare.NewClient(thyrocare.Config{
		BaseURL:       cfg.ThyrocareBaseURL,
		OrderBaseURL:  cfg.ThyrocareOrderBaseURL,
		APIKey:        cfg.ThyrocareAPIKey,
		PincodeAPIKey: cfg.ThyrocarePincodeAPIKey,
		Timeout:       cfg.UpstreamTimeout,
	}, logger, m)

	var cache pincode.Cache = pincode.NewMemoryCache(cfg.PincodeCacheTTL)
	var sessions booking.Store = booking.NewMemoryStore(cfg.SessionTTL)
	if redisClient != nil {
		cache = pincode.NewRedisCache(redisClient, cfg.PincodeCacheTTL)
		sessions = booking.NewRedisStore(redisClient, cfg.SessionTTL)
	}
	verifier := pincode.NewVerifier(upstream, cache, pincode.ParseFailurePolicy(cfg.PincodeFailurePolicy), logger, m)

	var submissions orders.SubmissionRepository = orders.NewMemorySubmissionRepository()
	var leadRepo leads.Repository = leads.NewInMemoryRepository()
	if pool != nil {
		submissions = orders.NewPostgresSubmissionRepository(pool)
		leadRepo = leads.NewPostgresRepository(pool)
	}

	submitter := orders.NewSubmitter(upstream, publisher, submissions, logger).
		WithRules(orders.Rules{AddressMinLength: cfg.AddressMinLength}).
		WithSource(cfg.OrderSource).
		WithPincodeVerifier(verifier).
		WithMetrics(m)

	adminHandler := admin.NewHandler(deadLetters, func(ctx context.Context, id string) (tasks.Task, error) {
		return tasks.Requeue(ctx, deadLetters, publisher, id)
	}, logger).WithGatherer(reg)

	if sqlDB != nil {
		audit := consent.NewAuditLog(sqlDB)
		submitter = submitter.WithConsent(audit)
		adminHandler = adminHandler.WithConsent(audit)
	}

	leadsHandler := leads.NewHandler(leadRepo, publisher, logger)
	service := booking.NewService(sessions, verifier, slots.NewFetcher(upstream, logger), submitter, logger)

	handler := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     booking.NewHandler(service, logger),
		OrdersHandler:      orders.NewHandler(submitter, submissions, logger),
		SummaryHandler:     summary.NewHandler(summary.NewViewer(upstream, logger)),
		ProxyHandler:       proxy.NewHandler(upstream, leadsHandler, publisher, fx.Notifier, logger),
		LeadsHandler:       leadsHandler,
		AdminHandler:       adminHandler,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	a := &app{handler: handler}
	if memQueue != nil {
		a.runner = bootstrap.BuildRunner(cfg, memQueue, deadLetters, fx, logger, m)
	}
	a.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return a
}
