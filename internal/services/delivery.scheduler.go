package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/daily-mass/internal/idempotency"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/prom"
	"golang.org/x/sync/errgroup"
)

type SchedulerConfig struct {
	Concurrency int
	// Templates maps a language to its notification template. Languages
	// without an entry use DefaultTemplate.
	Templates       map[model.Language]string
	DefaultTemplate string
	BaseURL         string
}

// RunResult summarizes one scheduler pass.
type RunResult struct {
	Considered int
	Dispatched int
	Paused     int
	Skipped    int
	Failed     int
}

// DeliveryScheduler fans out the daily notification to every subscriber
// whose local delivery minute has come. Failures stay with the subscriber
// they belong to.
type DeliveryScheduler struct {
	subscribers SubscriberRepository
	deliveryLog DeliveryLogRepository
	cache       *ReflectionCache
	notifier    Notifier
	guard       DispatchGuard
	gate        *ComplianceGate
	matcher     *TimeMatcher
	config      SchedulerConfig
}

// NewDeliveryScheduler wires the scheduler. guard may be nil, in which case
// only the delivery log protects against a second send on the same day.
func NewDeliveryScheduler(
	subscribers SubscriberRepository,
	deliveryLog DeliveryLogRepository,
	cache *ReflectionCache,
	notifier Notifier,
	guard DispatchGuard,
	gate *ComplianceGate,
	matcher *TimeMatcher,
	config SchedulerConfig,
) *DeliveryScheduler {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &DeliveryScheduler{
		subscribers: subscribers,
		deliveryLog: deliveryLog,
		cache:       cache,
		notifier:    notifier,
		guard:       guard,
		gate:        gate,
		matcher:     matcher,
		config:      config,
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePaused
	outcomeDispatched
	outcomeFailed
)

// run holds the state of a single pass.
type run struct {
	now    time.Time
	force  bool
	warmed sync.Map // dateKey:language -> *sync.Once
}

// Run performs one pass at now. With force every eligible subscriber is
// sent to regardless of time match and of today's earlier deliveries. Only a
// failure to list subscribers is returned as an error.
func (s *DeliveryScheduler) Run(ctx context.Context, now time.Time, force bool) (RunResult, error) {
	start := time.Now()
	defer func() { prom.AddTickDuration(time.Since(start).Seconds()) }()

	subs, err := s.subscribers.FindEligibleForDelivery(ctx)
	if err != nil {
		return RunResult{}, fmt.Errorf("list eligible subscribers: %w", err)
	}

	var paused, dispatched, skipped, failed atomic.Int64
	r := &run{now: now, force: force}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for _, sub := range subs {
		g.Go(func() error {
			switch s.process(gctx, r, sub) {
			case outcomePaused:
				paused.Add(1)
			case outcomeDispatched:
				dispatched.Add(1)
			case outcomeFailed:
				failed.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := RunResult{
		Considered: len(subs),
		Dispatched: int(dispatched.Load()),
		Paused:     int(paused.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	logger.Info("[scheduler] pass finished",
		"considered", result.Considered,
		"dispatched", result.Dispatched,
		"paused", result.Paused,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"force", force,
		"took", time.Since(start))
	return result, nil
}

func eligible(sub *model.Subscriber) bool {
	return sub.OptIn &&
		sub.DeliveryStatus == model.DeliveryStatusActive &&
		sub.BillingStatus.Entitled() &&
		sub.ContactAddress() != ""
}

func (s *DeliveryScheduler) process(ctx context.Context, r *run, sub *model.Subscriber) (result outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("[scheduler] panic while processing subscriber", "subscriber_id", sub.ID, "panic", rec)
			result = outcomeFailed
		}
	}()

	if ctx.Err() != nil {
		return outcomeSkipped
	}
	if !eligible(sub) {
		return outcomeSkipped
	}

	if s.gate.Evaluate(sub.LastInboundAt, r.now) == WindowExpired {
		pausedNow, err := s.subscribers.PauseIfStale(ctx, sub.ID, s.gate.Cutoff(r.now))
		if err != nil {
			logger.Error("[scheduler] failed to pause subscriber", "subscriber_id", sub.ID, "error", err)
			return outcomeFailed
		}
		if !pausedNow {
			// an inbound message refreshed the window after our snapshot
			return outcomeSkipped
		}
		logger.Info("[scheduler] compliance window expired, subscriber paused", "subscriber_id", sub.ID, "last_inbound_at", sub.LastInboundAt)
		return outcomePaused
	}

	local := SubscriberLocalTime(r.now, sub)
	if !r.force && !s.matcher.MatchesLocal(local, sub.DeliveryTime) {
		return outcomeSkipped
	}

	dateKey := model.DateKey(local)

	var claim *idempotency.ProcessingContext
	if !r.force {
		var proceed bool
		claim, proceed = s.claim(ctx, sub, dateKey)
		if !proceed {
			return outcomeSkipped
		}
	}

	s.prewarm(ctx, r, dateKey)

	language := sub.Language()
	template := s.templateFor(language)
	link := ReadingsLink(s.config.BaseURL, dateKey, sub.BibleVersion)

	messageID, err := s.notifier.SendTemplate(ctx, sub.ContactAddress(), template, language.Code(), []string{link})
	if err != nil {
		logger.Error("[scheduler] dispatch failed", "subscriber_id", sub.ID, "template", template, "error", err)
		prom.AddDispatch(string(model.DeliveryResultFailed))
		s.appendLog(ctx, sub.ID, dateKey, template, "", err)
		if claim != nil {
			if markErr := s.guard.MarkFailure(ctx, claim, err); markErr != nil {
				logger.Warn("[scheduler] failed to release delivery claim", "subscriber_id", sub.ID, "error", markErr)
			}
		}
		return outcomeFailed
	}

	prom.AddDispatch(string(model.DeliveryResultSuccess))
	if err := s.subscribers.MarkDelivered(ctx, sub.ID, r.now); err != nil {
		logger.Error("[scheduler] failed to record delivery time", "subscriber_id", sub.ID, "error", err)
	}
	s.appendLog(ctx, sub.ID, dateKey, template, messageID, nil)
	if claim != nil {
		if err := s.guard.MarkSuccess(ctx, claim); err != nil {
			logger.Warn("[scheduler] failed to mark delivery done", "subscriber_id", sub.ID, "error", err)
		}
	}

	logger.Debug("[scheduler] dispatched", "subscriber_id", sub.ID, "date_key", dateKey, "message_id", messageID)
	return outcomeDispatched
}

// claim takes the same-day delivery slot for sub. The delivery log backs up
// the redis marker, which may have expired or been flushed.
func (s *DeliveryScheduler) claim(ctx context.Context, sub *model.Subscriber, dateKey string) (*idempotency.ProcessingContext, bool) {
	var pc *idempotency.ProcessingContext
	if s.guard != nil {
		var err error
		pc, err = s.guard.Acquire(ctx, deliveryKey(sub.ID, dateKey))
		if err != nil {
			if !errors.Is(err, idempotency.ErrAlreadyProcessed) {
				logger.Debug("[scheduler] delivery slot not available", "subscriber_id", sub.ID, "date_key", dateKey, "reason", err)
			}
			return nil, false
		}
	}

	if s.deliveryLog != nil {
		delivered, err := s.deliveryLog.ExistsForDate(ctx, sub.ID, dateKey)
		if err != nil {
			logger.Warn("[scheduler] delivery log check failed", "subscriber_id", sub.ID, "error", err)
		} else if delivered {
			if pc != nil {
				_ = s.guard.MarkSuccess(ctx, pc)
			}
			return nil, false
		}
	}
	return pc, true
}

func deliveryKey(subscriberID int64, dateKey string) string {
	return strconv.FormatInt(subscriberID, 10) + ":" + dateKey
}

// prewarm makes one attempt per (dateKey, language) per pass. Subscribers
// sharing a key wait for that attempt instead of starting their own.
func (s *DeliveryScheduler) prewarm(ctx context.Context, r *run, dateKey string) {
	if s.cache == nil {
		return
	}
	for _, language := range model.Languages() {
		v, _ := r.warmed.LoadOrStore(cacheKey(dateKey, language), new(sync.Once))
		v.(*sync.Once).Do(func() {
			if _, err := s.cache.GetOrGenerate(ctx, dateKey, language); err != nil {
				logger.Warn("[scheduler] pre-warm failed", "date_key", dateKey, "language", language, "error", err)
			}
		})
	}
}

func (s *DeliveryScheduler) templateFor(language model.Language) string {
	if name, ok := s.config.Templates[language]; ok && name != "" {
		return name
	}
	return s.config.DefaultTemplate
}

func (s *DeliveryScheduler) appendLog(ctx context.Context, subscriberID int64, dateKey, template, messageID string, sendErr error) {
	if s.deliveryLog == nil {
		return
	}
	entry := &model.DeliveryLogEntry{
		ID:                uuid.NewString(),
		SubscriberID:      subscriberID,
		DateKey:           dateKey,
		Result:            model.DeliveryResultSuccess,
		Template:          template,
		ProviderMessageID: messageID,
		CreatedAt:         time.Now().UTC(),
	}
	if sendErr != nil {
		entry.Result = model.DeliveryResultFailed
		entry.Error = sendErr.Error()
	}
	if err := s.deliveryLog.Create(ctx, entry); err != nil {
		logger.Error("[scheduler] failed to append delivery log", "subscriber_id", subscriberID, "error", err)
	}
}

// ReadingsLink is the public page for the day's full readings.
func ReadingsLink(baseURL, dateKey, version string) string {
	if version == "" {
		version = model.DefaultBibleVersion
	}
	return strings.TrimRight(baseURL, "/") + "/readings/" + dateKey + "?version=" + url.QueryEscape(version)
}
