package services

import (
	"context"
	"time"

	"github.com/nimasrn/daily-mass/internal/idempotency"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/worker"
)

type SubscriberRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Subscriber, error)
	FindByContact(ctx context.Context, address string) (*model.Subscriber, error)
	FindEligibleForDelivery(ctx context.Context) ([]*model.Subscriber, error)
	TouchInbound(ctx context.Context, id int64, at time.Time) error
	ResumeIfPaused(ctx context.Context, id int64) (bool, error)
	PauseIfStale(ctx context.Context, id int64, cutoff time.Time) (bool, error)
	Activate(ctx context.Context, id int64, at time.Time) (model.DeliveryStatus, error)
	OptOut(ctx context.Context, id int64, at time.Time) error
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	UpdateBillingStatus(ctx context.Context, id int64, status model.BillingStatus) (model.BillingStatus, error)
	ReassignContact(ctx context.Context, oldOwnerID *int64, newOwnerID int64, address string) error
}

type ReflectionStore interface {
	Find(ctx context.Context, dateKey string, language model.Language) (*model.ReflectionArtifact, error)
	CreateIfAbsent(ctx context.Context, dateKey string, language model.Language, content string) (bool, error)
}

type DeliveryLogRepository interface {
	Create(ctx context.Context, entry *model.DeliveryLogEntry) error
	ExistsForDate(ctx context.Context, subscriberID int64, dateKey string) (bool, error)
}

type ReadingsFetcher interface {
	Fetch(ctx context.Context, dateKey, version string) (*model.Readings, error)
}

// Generator returns "" with a nil error when it has nothing to offer.
type Generator interface {
	Generate(ctx context.Context, readings *model.Readings, language model.Language) (string, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, to, text string) (string, error)
	SendTemplate(ctx context.Context, to, templateName, languageCode string, variables []string) (string, error)
}

// KeyLock is a cross-process mutex keyed by string.
type KeyLock interface {
	TryLock(ctx context.Context, key string) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// DispatchGuard claims a unit of work at most once until it succeeds.
type DispatchGuard interface {
	Acquire(ctx context.Context, key string) (*idempotency.ProcessingContext, error)
	MarkSuccess(ctx context.Context, pc *idempotency.ProcessingContext) error
	MarkFailure(ctx context.Context, pc *idempotency.ProcessingContext, reason error) error
}

type TaskQueue interface {
	Enqueue(job worker.Job) error
}
