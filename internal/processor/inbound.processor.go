package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/daily-mass/internal/idempotency"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/internal/queue"
	"github.com/nimasrn/daily-mass/internal/services"
	"github.com/nimasrn/daily-mass/pkg/logger"
)

var ErrLookupFailed = errors.New("subscriber lookup failed")

type Router interface {
	Handle(ctx context.Context, msg model.InboundMessage, now time.Time) services.Outcome
}

type Deduplicator interface {
	Acquire(ctx context.Context, key string) (*idempotency.ProcessingContext, error)
	MarkSuccess(ctx context.Context, pc *idempotency.ProcessingContext) error
	MarkFailure(ctx context.Context, pc *idempotency.ProcessingContext, reason error) error
}

// InboundProcessor runs each queued webhook event through the command
// router exactly once per provider message id.
type InboundProcessor struct {
	router  Router
	dedupe  Deduplicator
	metrics *ServiceMetrics
	clock   func() time.Time
}

func NewInboundProcessor(router Router, dedupe Deduplicator, metrics *ServiceMetrics) *InboundProcessor {
	if metrics == nil {
		metrics = NewServiceMetrics()
	}
	return &InboundProcessor{
		router:  router,
		dedupe:  dedupe,
		metrics: metrics,
		clock:   time.Now,
	}
}

func (p *InboundProcessor) GetType() string {
	return "inbound"
}

// Process handles one queue entry. A nil return acks it; an error leaves it
// pending for redelivery.
func (p *InboundProcessor) Process(ctx context.Context, qm *queue.Message) error {
	start := time.Now()
	msg, err := queue.DecodeInbound(qm)
	if err != nil {
		logger.Error("[processor] malformed inbound event", "queue_id", qm.ID, "error", err)
		p.metrics.RecordFailure()
		return err
	}

	var pc *idempotency.ProcessingContext
	if msg.MessageID != "" && p.dedupe != nil {
		pc, err = p.dedupe.Acquire(ctx, msg.MessageID)
		switch {
		case err == nil:
		case errors.Is(err, idempotency.ErrAlreadyProcessed):
			logger.Info("[processor] duplicate inbound event skipped", "message_id", msg.MessageID, "contact", msg.Contact)
			p.metrics.RecordDuplicate()
			return nil
		case errors.Is(err, idempotency.ErrMaxRetriesExceeded):
			logger.Error("[processor] inbound event gave up after retries", "message_id", msg.MessageID, "contact", msg.Contact)
			p.metrics.RecordFailure()
			return nil
		default:
			// another consumer holds it, or redis is unavailable
			return fmt.Errorf("acquire %s: %w", msg.MessageID, err)
		}
	}

	now := msg.ReceivedAt
	if now.IsZero() {
		now = p.clock()
	}
	out := p.router.Handle(ctx, msg, now)

	if out.Action == services.ActionLookupFailed {
		p.metrics.RecordFailure()
		if pc != nil {
			if markErr := p.dedupe.MarkFailure(ctx, pc, ErrLookupFailed); markErr != nil {
				logger.Warn("[processor] failed to record attempt", "message_id", msg.MessageID, "error", markErr)
			}
		}
		return fmt.Errorf("%w: contact %s", ErrLookupFailed, msg.Contact)
	}

	if pc != nil {
		if err := p.dedupe.MarkSuccess(ctx, pc); err != nil {
			logger.Warn("[processor] failed to mark inbound event processed", "message_id", msg.MessageID, "error", err)
		}
	}
	p.metrics.RecordSuccess(time.Since(start))

	logger.Info("[processor] inbound event handled",
		"message_id", msg.MessageID,
		"channel", msg.Channel,
		"contact", msg.Contact,
		"intent", out.Intent,
		"action", out.Action,
		"subscriber_id", out.SubscriberID,
		"messages_sent", out.MessagesSent,
		"send_error", out.SendErr)
	return nil
}
