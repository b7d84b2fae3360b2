package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimasrn/daily-mass/internal/config"
	gateway "github.com/nimasrn/daily-mass/internal/gateways"
	"github.com/nimasrn/daily-mass/internal/handlers"
	"github.com/nimasrn/daily-mass/internal/idempotency"
	"github.com/nimasrn/daily-mass/internal/queue"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/internal/services"
	xhttp "github.com/nimasrn/daily-mass/pkg/http"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/pg"
	"github.com/nimasrn/daily-mass/pkg/redis"
	"github.com/nimasrn/daily-mass/pkg/worker"
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
	if err := logger.Configure(cfg.AppEnv, cfg.LogLevel, "service", "api"); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	defer logger.Sync()
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// transport (tcp for now)
	s := xhttp.CreateServer(cfg.HttpServerReadTimeout, cfg.HttpServerWriteTimeout)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.TimeoutMiddleware(time.Minute))

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("api"))
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.NewQueue(ctx, redisAdap, queue.QueueConfig{
		Name:              cfg.QueueName,
		ConsumerGroup:     cfg.QueueConsumerGroup,
		MaxRetries:        cfg.QueueMaxRetries,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		PollInterval:      cfg.QueuePollInterval,
		BatchSize:         cfg.QueueBatchSize,
		MaxLen:            cfg.QueueMaxLen,
		EnableDLQ:         cfg.QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	notifier, err := gateway.NewClient(cfg.Notifier())
	if err != nil {
		logger.Error("failed to create notifier", "error", err)
		return
	}
	defer notifier.Close()

	workers := worker.NewWorkerManager(cfg.WorkerBufferSize, cfg.WorkerCount)
	workers.Start(ctx)

	subscriberRepo := repository.NewSubscriberRepository(db)
	reflectionRepo := repository.NewReflectionRepository(db)
	deliveryLogRepo := repository.NewDeliveryLogRepository(db)

	readings := gateway.NewReadingsClient(cfg.ReadingsUrl, cfg.ReadingsTimeout)
	var generator services.Generator
	if cfg.GeneratorUrl != "" {
		generator = gateway.NewGeneratorClient(cfg.GeneratorUrl, cfg.GeneratorApiKey, cfg.GeneratorModel, cfg.GeneratorTimeout)
	}

	// services
	cache := services.NewReflectionCache(reflectionRepo, readings, generator,
		idempotency.NewKeyLock(redisAdap, "reflection", cfg.GeneratorTimeout+cfg.ReadingsTimeout),
		services.ReflectionCacheConfig{ReadingsTimeout: cfg.ReadingsTimeout, GeneratorTimeout: cfg.GeneratorTimeout})
	guard := idempotency.NewService(redisAdap, idempotency.Config{
		LockTTL:      5 * time.Minute,
		ProcessedTTL: 48 * time.Hour,
		MaxRetries:   cfg.DeliveryMaxRetries,
		Namespace:    "dispatch",
	})
	scheduler := services.NewDeliveryScheduler(subscriberRepo, deliveryLogRepo, cache, notifier, guard,
		services.NewComplianceGate(cfg.ComplianceWindow),
		services.NewTimeMatcher(cfg.CatchupWindow),
		services.SchedulerConfig{
			Concurrency:     cfg.SchedulerConcurrency,
			Templates:       cfg.Templates(),
			DefaultTemplate: cfg.TemplateDefault,
			BaseURL:         cfg.AppBaseUrl,
		})
	contactService := services.NewContactService(subscriberRepo, services.NewRedisVerifier(redisAdap, 10*time.Minute), notifier)
	billingService := services.NewBillingService(subscriberRepo, notifier, workers)
	healthService := services.NewHealthService().Register("postgres", db).Register("redis", redisAdap)

	// v1 handlers
	webhookHandler := handlers.NewWebhookHandler(queue.NewInboundQueue(q), handlers.WebhookConfig{
		VerifyToken:  cfg.WebhookVerifyToken,
		AppSecret:    cfg.WebhookAppSecret,
		SMSAuthToken: cfg.SMSAuthToken,
		SMSPublicURL: cfg.SMSWebhookURL,
	})
	adminHandler := handlers.NewAdminHandler(scheduler, contactService, billingService, subscriberRepo)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterAdminRoutes(g, adminHandler, cfg.AdminToken)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
	cancel()
	workers.Exit()
}
