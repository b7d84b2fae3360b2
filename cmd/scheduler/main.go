package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/daily-mass/internal/config"
	gateway "github.com/nimasrn/daily-mass/internal/gateways"
	"github.com/nimasrn/daily-mass/internal/idempotency"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/internal/services"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/pg"
	"github.com/nimasrn/daily-mass/pkg/prom"
	"github.com/nimasrn/daily-mass/pkg/redis"
	"github.com/robfig/cron/v3"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(config.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	if err := logger.Configure(cfg.AppEnv, cfg.LogLevel, "service", "scheduler"); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	defer logger.Sync()
	logger.Info("starting scheduler", "version", version, "commit", commit, "date", date)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), false)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("scheduler"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	notifier, err := gateway.NewClient(cfg.Notifier())
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		return
	}
	defer notifier.Close()

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go func() {
		if err := prom.ListenAndServer(cfg.MetricsAddr, cfg.MetricsURI); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	readings := gateway.NewReadingsClient(cfg.ReadingsUrl, cfg.ReadingsTimeout)
	var generator services.Generator
	if cfg.GeneratorUrl != "" {
		generator = gateway.NewGeneratorClient(cfg.GeneratorUrl, cfg.GeneratorApiKey, cfg.GeneratorModel, cfg.GeneratorTimeout)
	} else {
		logger.Warn("no generator configured, summaries will not be pre-generated")
	}

	cache := services.NewReflectionCache(repository.NewReflectionRepository(db), readings, generator,
		idempotency.NewKeyLock(redisAdap, "reflection", cfg.GeneratorTimeout+cfg.ReadingsTimeout),
		services.ReflectionCacheConfig{ReadingsTimeout: cfg.ReadingsTimeout, GeneratorTimeout: cfg.GeneratorTimeout})
	guard := idempotency.NewService(redisAdap, idempotency.Config{
		LockTTL:      5 * time.Minute,
		ProcessedTTL: 48 * time.Hour,
		MaxRetries:   cfg.DeliveryMaxRetries,
		Namespace:    "dispatch",
	})
	scheduler := services.NewDeliveryScheduler(
		repository.NewSubscriberRepository(db),
		repository.NewDeliveryLogRepository(db),
		cache, notifier, guard,
		services.NewComplianceGate(cfg.ComplianceWindow),
		services.NewTimeMatcher(cfg.CatchupWindow),
		services.SchedulerConfig{
			Concurrency:     cfg.SchedulerConcurrency,
			Templates:       cfg.Templates(),
			DefaultTemplate: cfg.TemplateDefault,
			BaseURL:         cfg.AppBaseUrl,
		})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cronLogger := cron.PrintfLogger(logger.GetLogger().With("component", "cron"))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	_, err = c.AddFunc(cfg.SchedulerCron, func() {
		if _, err := scheduler.Run(ctx, time.Now(), false); err != nil {
			logger.Error("[scheduler] pass failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("failed to schedule delivery pass", "error", err, "schedule", cfg.SchedulerCron)
		return
	}
	logger.Info("scheduled delivery pass", "schedule", cfg.SchedulerCron)
	c.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	cancel()
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}
