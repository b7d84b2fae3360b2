package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/daily-mass/internal/config"
	gateway "github.com/nimasrn/daily-mass/internal/gateways"
	"github.com/nimasrn/daily-mass/internal/idempotency"
	"github.com/nimasrn/daily-mass/internal/processor"
	"github.com/nimasrn/daily-mass/internal/queue"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/internal/services"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/pg"
	"github.com/nimasrn/daily-mass/pkg/prom"
	"github.com/nimasrn/daily-mass/pkg/redis"
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
	if err := logger.Configure(cfg.AppEnv, cfg.LogLevel, "service", "processor"); err != nil {
		logger.Error("failed to configure logger", "error", err)
	}
	defer logger.Sync()
	logger.Info("starting processor", "version", version, "commit", commit, "date", date)

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), false)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, cfg.RedisOptions("processor"))
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
	}
	cache := services.NewReflectionCache(repository.NewReflectionRepository(db), readings, generator,
		idempotency.NewKeyLock(redisAdap, "reflection", cfg.GeneratorTimeout+cfg.ReadingsTimeout),
		services.ReflectionCacheConfig{ReadingsTimeout: cfg.ReadingsTimeout, GeneratorTimeout: cfg.GeneratorTimeout})

	router := services.NewCommandRouter(repository.NewSubscriberRepository(db), readings, cache, notifier, services.RouterConfig{
		BaseURL:         cfg.AppBaseUrl,
		MessageDelay:    cfg.MessageDelay,
		ReadingsTimeout: cfg.ReadingsTimeout,
	})

	metrics := processor.NewServiceMetrics()
	dedupe := idempotency.NewService(redisAdap, idempotency.DefaultConfig())
	service := processor.NewProcessorService(redisAdap, processor.NewInboundProcessor(router, dedupe, metrics), metrics, processor.Options{
		Queue: queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      cfg.QueueConsumerName,
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		},
		Consumers:  cfg.QueueConsumers,
		Workers:    cfg.WorkerCount,
		BufferSize: cfg.WorkerBufferSize,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	service.Stop()
}
