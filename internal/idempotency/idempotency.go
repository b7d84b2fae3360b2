package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type Config struct {
	LockTTL time.Duration

	ProcessedTTL time.Duration

	MaxRetries int

	// Namespace separates independent users of the same redis, e.g.
	// inbound dedupe and the daily dispatch guard.
	Namespace string
}

func DefaultConfig() Config {
	return Config{
		LockTTL:      30 * time.Second,
		ProcessedTTL: 24 * time.Hour,
		MaxRetries:   3,
		Namespace:    "inbound",
	}
}

// Service guards a unit of work identified by a key: at most one holder at a
// time, a long-lived processed marker once it succeeded, and a bounded
// number of failed attempts.
type Service struct {
	redis  redis.RedisAdapter
	config Config
}

func NewService(redisAdapter redis.RedisAdapter, config Config) *Service {
	return &Service{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	Key          string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *Service) lockKey(key string) string {
	return s.config.Namespace + ":lock:" + key
}

func (s *Service) processedKey(key string) string {
	return s.config.Namespace + ":processed:" + key
}

func (s *Service) retryKey(key string) string {
	return s.config.Namespace + ":retry:" + key
}

// Acquire claims key for processing.
func (s *Service) Acquire(ctx context.Context, key string) (*ProcessingContext, error) {
	exists, err := s.redis.Exist(ctx, s.processedKey(key))
	if err != nil {
		// a redis hiccup must not block processing; the lock below still holds
		logger.Warn("[idempotency] failed to check processed status", "key", key, "error", err)
	} else if exists > 0 {
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, key)
	if err != nil {
		logger.Warn("[idempotency] failed to read retry count", "key", key, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: key=%s, retries=%d", ErrMaxRetriesExceeded, key, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.lockKey(key), lockValue, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("[idempotency] lock acquired", "key", key, "retry_count", retryCount)

	return &ProcessingContext{
		Key:          key,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

// MarkSuccess records the processed marker and clears the lock and retry
// counter.
func (s *Service) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.processedKey(pc.Key), []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}
	s.cleanup(ctx, pc)
	return nil
}

// MarkFailure counts a failed attempt and releases the lock so a later
// attempt may retry.
func (s *Service) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	next := pc.RetryCount + 1
	if err := s.redis.Set(ctx, s.retryKey(pc.Key), []byte(strconv.Itoa(next)), s.config.ProcessedTTL); err != nil {
		logger.Error("[idempotency] failed to increment retry counter", "key", pc.Key, "error", err)
	}
	if err := s.ReleaseLock(ctx, pc); err != nil {
		return err
	}

	logger.Warn("[idempotency] attempt failed",
		"key", pc.Key,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return nil
}

func (s *Service) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	if err := s.redis.Del(ctx, s.lockKey(pc.Key)); err != nil {
		logger.Warn("[idempotency] failed to release lock", "key", pc.Key, "error", err)
		return err
	}
	pc.lockAcquired = false
	return nil
}

func (s *Service) cleanup(ctx context.Context, pc *ProcessingContext) {
	if err := s.redis.Del(ctx, s.lockKey(pc.Key)); err != nil {
		logger.Warn("[idempotency] failed to cleanup lock", "key", pc.Key, "error", err)
	}
	if err := s.redis.Del(ctx, s.retryKey(pc.Key)); err != nil {
		logger.Warn("[idempotency] failed to cleanup retry counter", "key", pc.Key, "error", err)
	}
	pc.lockAcquired = false
}

func (s *Service) GetRetryCount(ctx context.Context, key string) (int, error) {
	b, err := s.redis.Get(ctx, s.retryKey(key))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (s *Service) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.redis.Exist(ctx, s.processedKey(key))
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
