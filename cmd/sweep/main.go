package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pipewise/pipeline-engine/cmd/mainconfig"
	appconfig "github.com/pipewise/pipeline-engine/internal/config"
	"github.com/pipewise/pipeline-engine/internal/crm"
	"github.com/pipewise/pipeline-engine/internal/notifications"
	"github.com/pipewise/pipeline-engine/internal/observability/metrics"
	"github.com/pipewise/pipeline-engine/internal/sweep"
	"github.com/pipewise/pipeline-engine/internal/tips"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting pipeline-engine sweep worker", "interval", cfg.SweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	guard := notifications.NewGuard(notifStore, rdb, cfg.DedupeWindow, logger)

	completer := mainconfig.BuildTipCompleter(ctx, cfg, awsCfg, logger)
	tipGenerator := tips.NewGenerator(completer, cfg.TipTimeout, logger)

	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)
	orchestrator := sweep.NewOrchestrator(contactStore, notifStore, guard, tipGenerator, loc, sweepMetrics, logger)

	var queue sweep.TriggerQueue
	if cfg.SweepQueueURL != "" {
		queue = sqs.NewFromConfig(awsCfg)
	}
	worker := sweep.NewWorker(orchestrator, cfg.SweepInterval, queue, cfg.SweepQueueURL, logger)
	worker.Start(ctx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down sweep worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("sweep worker stopped")
	case <-doneCtx.Done():
		logger.Error("sweep worker shutdown timed out", "error", doneCtx.Err())
	}
}
