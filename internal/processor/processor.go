package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/daily-mass/internal/queue"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/redis"
	"github.com/nimasrn/daily-mass/pkg/worker"
)

const ProcessingTimeout = 30 * time.Second
const HealthInterval = 30 * time.Second
const ShutdownTimeout = time.Minute

type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Options struct {
	Queue      queue.QueueConfig
	Consumers  int
	Workers    int
	BufferSize int
}

// ProcessorService runs queue consumers that hand each message to a worker
// pool and ack or retry according to the processor's answer.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	options   Options
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	queues    []*queue.Queue
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

func NewProcessorService(adapter redis.RedisAdapter, processor Processor, metrics *ServiceMetrics, options Options) *ProcessorService {
	if options.Consumers < 1 {
		options.Consumers = 1
	}
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.BufferSize < options.Workers {
		options.BufferSize = options.Workers
	}
	if metrics == nil {
		metrics = NewServiceMetrics()
	}
	return &ProcessorService{
		adapter:   adapter,
		options:   options,
		processor: processor,
		metrics:   metrics,
		worker:    worker.NewWorkerManager(options.BufferSize, options.Workers),
	}
}

func (s *ProcessorService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.worker.Start(ctx)

	base := s.options.Queue.ConsumerName
	if base == "" {
		base = "processor-" + uuid.NewString()[:8]
	}
	for i := 0; i < s.options.Consumers; i++ {
		cfg := s.options.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-%d", base, i)

		q, err := queue.NewQueue(ctx, s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(ctx, s.messageHandler); err != nil {
			return fmt.Errorf("start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(1)
	go s.healthChecker(ctx)

	logger.Info("[processor] started", "type", s.processor.GetType(), "consumers", len(s.queues), "workers", s.options.Workers)
	return nil
}

// messageHandler runs msg on the worker pool and waits for its result.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	result := make(chan error, 1)
	job := worker.Job{
		Name: s.processor.GetType() + ":" + msg.ID,
		Run: func(context.Context) error {
			result <- s.processor.Process(msgCtx, msg)
			return nil
		},
	}
	if err := s.worker.Enqueue(job); err != nil {
		// leave it pending; it is reclaimed after the visibility timeout
		return err
	}

	select {
	case err := <-result:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("timeout waiting for worker: %w", msgCtx.Err())
	}
}

func (s *ProcessorService) healthChecker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck(ctx context.Context) {
	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("[processor] health check failed: redis unreachable", "error", err)
		return
	}
	if len(s.queues) > 0 {
		stats, err := s.queues[0].GetStats(ctx)
		if err != nil {
			logger.Warn("[processor] queue stats unavailable", "error", err)
		} else if stats.PendingMessages > 1000 {
			logger.Warn("[processor] inbound queue lagging", "pending", stats.PendingMessages, "dead_letters", stats.DeadLetters)
		}
	}

	snap := s.metrics.Snapshot()
	logger.Info("[processor] health check ok",
		"processed", snap.Processed,
		"failed", snap.Failed,
		"duplicates", snap.Duplicates,
		"rate_per_second", snap.RatePerSecond,
		"avg_duration_ms", snap.AvgDuration.Milliseconds())
}

// Stop stops the consumers first so nothing new reaches the pool, then
// drains the pool.
func (s *ProcessorService) Stop() {
	logger.Info("[processor] shutting down")

	var wg sync.WaitGroup
	for i, q := range s.queues {
		wg.Add(1)
		go func(index int, q *queue.Queue) {
			defer wg.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("[processor] consumer did not stop", "consumer", index, "error", err)
			}
		}(i, q)
	}
	wg.Wait()

	s.worker.Exit()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	logger.Info("[processor] stopped", "processed", s.metrics.Snapshot().Processed)
}
