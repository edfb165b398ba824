package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/pipewise/pipeline-engine/cmd/mainconfig"
	"github.com/pipewise/pipeline-engine/internal/api/router"
	appconfig "github.com/pipewise/pipeline-engine/internal/config"
	"github.com/pipewise/pipeline-engine/internal/crm"
	"github.com/pipewise/pipeline-engine/internal/feed"
	"github.com/pipewise/pipeline-engine/internal/http/handlers"
	"github.com/pipewise/pipeline-engine/internal/meetings"
	"github.com/pipewise/pipeline-engine/internal/notifications"
	"github.com/pipewise/pipeline-engine/internal/observability/metrics"
	"github.com/pipewise/pipeline-engine/internal/risk"
	"github.com/pipewise/pipeline-engine/internal/sweep"
	"github.com/pipewise/pipeline-engine/internal/tips"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting pipeline-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb = redis.NewClient(opts)
	}

	loc, err := time.LoadLocation(cfg.DigestTimezone)
	if err != nil {
		logger.Warn("invalid digest timezone, falling back to UTC", "timezone", cfg.DigestTimezone)
		loc = time.UTC
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	contactStore := crm.NewStore(pool)
	notifStore := notifications.NewStore(pool)
	meetingStore := meetings.NewStore(pool)

	guard := notifications.NewGuard(notifStore, rdb, cfg.DedupeWindow, logger)
	scheduler := meetings.NewReminderScheduler(notifStore, logger)
	evaluator := risk.NewEvaluator(loc)
	aggregator := feed.NewAggregator(meetingStore, notifStore, contactStore, loc, logger)

	completer := mainconfig.BuildTipCompleter(ctx, cfg, awsCfg, logger)
	tipGenerator := tips.NewGenerator(completer, cfg.TipTimeout, logger)

	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)
	reminderMetrics := metrics.NewReminderMetrics(prometheus.DefaultRegisterer)
	orchestrator := sweep.NewOrchestrator(contactStore, notifStore, guard, tipGenerator, loc, sweepMetrics, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		Contacts:           handlers.NewContactsHandler(contactStore, evaluator, logger),
		Meetings:           handlers.NewMeetingsHandler(meetingStore, scheduler, reminderMetrics, logger),
		Feed:               handlers.NewFeedHandler(aggregator, logger),
		Sweep:              handlers.NewSweepHandler(orchestrator, logger),
		UserAuthSecret:     cfg.UserJWTSecret,
		SweepSecret:        cfg.SweepSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: float64(cfg.RateLimitRPS),
		RateLimitBurst:     cfg.RateLimitRPS * 2,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
