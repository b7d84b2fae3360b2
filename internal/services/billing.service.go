package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/worker"
)

// BillingService mirrors subscription status pushed by the billing provider.
type BillingService struct {
	subscribers SubscriberRepository
	notifier    Notifier
	tasks       TaskQueue
}

func NewBillingService(subscribers SubscriberRepository, notifier Notifier, tasks TaskQueue) *BillingService {
	return &BillingService{
		subscribers: subscribers,
		notifier:    notifier,
		tasks:       tasks,
	}
}

// Sync stores status. Entering trial queues a welcome notice in the
// background; the caller never waits for it.
func (s *BillingService) Sync(ctx context.Context, subscriberID int64, status model.BillingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown billing status %q", status)
	}
	previous, err := s.subscribers.UpdateBillingStatus(ctx, subscriberID, status)
	if err != nil {
		return err
	}
	logger.Info("[billing] status synced", "subscriber_id", subscriberID, "previous", previous, "status", status)

	if status == model.BillingStatusTrial && previous != model.BillingStatusTrial {
		s.notifyTrial(subscriberID)
	}
	return nil
}

func (s *BillingService) notifyTrial(subscriberID int64) {
	if s.tasks == nil || s.notifier == nil {
		return
	}
	job := worker.Job{
		Name: fmt.Sprintf("trial-notice:%d", subscriberID),
		Run: func(ctx context.Context) error {
			sub, err := s.subscribers.FindByID(ctx, subscriberID)
			if err != nil {
				return err
			}
			if sub.ContactAddress() == "" || !sub.OptIn {
				return nil
			}
			_, err = s.notifier.SendMessage(ctx, sub.ContactAddress(), messagesFor(sub.Language()).TrialStarted)
			return err
		},
	}
	if err := s.tasks.Enqueue(job); err != nil {
		logger.Warn("[billing] trial notice dropped", "subscriber_id", subscriberID, "error", err)
	}
}
