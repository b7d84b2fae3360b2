package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/prom"
	"golang.org/x/sync/singleflight"
)

// ErrNotReady means no reflection exists for the key and none could be
// produced right now. Callers may retry later.
var ErrNotReady = errors.New("reflection not ready")

type ReflectionCacheConfig struct {
	ReadingsTimeout  time.Duration
	GeneratorTimeout time.Duration
	// LockWait bounds how long a caller waits for another process that holds
	// the generation lock for the same key.
	LockWait     time.Duration
	PollInterval time.Duration
}

func DefaultReflectionCacheConfig() ReflectionCacheConfig {
	return ReflectionCacheConfig{
		ReadingsTimeout:  10 * time.Second,
		GeneratorTimeout: 30 * time.Second,
		LockWait:         45 * time.Second,
		PollInterval:     500 * time.Millisecond,
	}
}

// ReflectionCache serves one reflection per (dateKey, language). Generation
// for a key runs at most once at a time: singleflight collapses callers in
// this process and the key lock collapses processes.
type ReflectionCache struct {
	store     ReflectionStore
	readings  ReadingsFetcher
	generator Generator
	lock      KeyLock
	config    ReflectionCacheConfig
	group     singleflight.Group
}

// NewReflectionCache builds the cache. generator and lock may be nil: without
// a generator every miss is ErrNotReady, without a lock only in-process
// callers are collapsed.
func NewReflectionCache(store ReflectionStore, readings ReadingsFetcher, generator Generator, lock KeyLock, config ReflectionCacheConfig) *ReflectionCache {
	def := DefaultReflectionCacheConfig()
	if config.ReadingsTimeout <= 0 {
		config.ReadingsTimeout = def.ReadingsTimeout
	}
	if config.GeneratorTimeout <= 0 {
		config.GeneratorTimeout = def.GeneratorTimeout
	}
	if config.LockWait <= 0 {
		config.LockWait = def.LockWait
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	return &ReflectionCache{
		store:     store,
		readings:  readings,
		generator: generator,
		lock:      lock,
		config:    config,
	}
}

func cacheKey(dateKey string, language model.Language) string {
	return dateKey + ":" + string(language)
}

// GetOrGenerate returns the stored reflection or produces, persists and
// returns a new one. Any failure on the way is reported as ErrNotReady.
func (c *ReflectionCache) GetOrGenerate(ctx context.Context, dateKey string, language model.Language) (string, error) {
	if content, ok := c.lookup(ctx, dateKey, language); ok {
		return content, nil
	}
	if c.generator == nil || c.readings == nil {
		return "", ErrNotReady
	}

	key := cacheKey(dateKey, language)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		// shared by every waiter, so it must not die with the first caller
		return c.generate(context.WithoutCancel(ctx), dateKey, language)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrNotReady, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *ReflectionCache) lookup(ctx context.Context, dateKey string, language model.Language) (string, bool) {
	artifact, err := c.store.Find(ctx, dateKey, language)
	if err != nil {
		if !errors.Is(err, repository.ErrReflectionNotFound) {
			logger.Warn("[reflection] lookup failed", "date_key", dateKey, "language", language, "error", err)
		}
		return "", false
	}
	return artifact.Content, true
}

func (c *ReflectionCache) generate(ctx context.Context, dateKey string, language model.Language) (string, error) {
	// a previous flight may have stored it while we queued
	if content, ok := c.lookup(ctx, dateKey, language); ok {
		return content, nil
	}

	key := cacheKey(dateKey, language)
	if c.lock != nil {
		acquired, err := c.lock.TryLock(ctx, key)
		switch {
		case err != nil:
			logger.Warn("[reflection] generation lock unavailable, continuing without it", "key", key, "error", err)
		case !acquired:
			return c.awaitOther(ctx, dateKey, language)
		default:
			defer func() {
				if err := c.lock.Unlock(ctx, key); err != nil {
					logger.Warn("[reflection] failed to release generation lock", "key", key, "error", err)
				}
			}()
			if content, ok := c.lookup(ctx, dateKey, language); ok {
				return content, nil
			}
		}
	}

	readingsCtx, cancel := context.WithTimeout(ctx, c.config.ReadingsTimeout)
	readings, err := c.readings.Fetch(readingsCtx, dateKey, model.VersionForLanguage(language))
	cancel()
	if err != nil {
		logger.Warn("[reflection] readings fetch failed", "date_key", dateKey, "language", language, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNotReady, err)
	}

	start := time.Now()
	genCtx, cancel := context.WithTimeout(ctx, c.config.GeneratorTimeout)
	content, err := c.generator.Generate(genCtx, readings, language)
	cancel()
	prom.AddGenerationDuration(time.Since(start).Seconds(), string(language))
	if err != nil {
		logger.Warn("[reflection] generation failed", "date_key", dateKey, "language", language, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if content == "" {
		logger.Warn("[reflection] generator returned no content", "date_key", dateKey, "language", language)
		return "", ErrNotReady
	}

	created, err := c.store.CreateIfAbsent(ctx, dateKey, language, content)
	if err != nil {
		logger.Error("[reflection] failed to store reflection", "date_key", dateKey, "language", language, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if !created {
		// lost the race; serve the stored winner so every caller sees one text
		if stored, ok := c.lookup(ctx, dateKey, language); ok {
			return stored, nil
		}
		return "", ErrNotReady
	}

	logger.Info("[reflection] generated", "date_key", dateKey, "language", language, "took", time.Since(start))
	return content, nil
}

// awaitOther polls the store while another process generates the key.
func (c *ReflectionCache) awaitOther(ctx context.Context, dateKey string, language model.Language) (string, error) {
	deadline := time.NewTimer(c.config.LockWait)
	defer deadline.Stop()
	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return "", ErrNotReady
		case <-ticker.C:
			if content, ok := c.lookup(ctx, dateKey, language); ok {
				return content, nil
			}
		}
	}
}
