package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func startWorkers(t *testing.T) *worker.WorkerManager {
	t.Helper()
	w := worker.NewWorkerManager(10, 1)
	w.Start(context.Background())
	t.Cleanup(w.Exit)
	return w
}

func TestBillingService_TrialNoticeRunsInBackground(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	svc := NewBillingService(env.subscribers, notifier, startWorkers(t))
	activatedAt := utc("2025-03-10T07:00:00Z")
	sub := env.addSubscriber(t, subscriberOpts{Contact: "+1", Billing: model.BillingStatusActive}, &activatedAt)

	require.NoError(t, svc.Sync(ctx, sub.ID, model.BillingStatusTrial))
	assert.Equal(t, model.BillingStatusTrial, env.reload(t, sub.ID).BillingStatus)

	assert.Eventually(t, func() bool {
		return len(notifier.To("+1")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, messagesFor(model.LanguageEnglish).TrialStarted, notifier.To("+1")[0].Text)

	// staying in trial does not notify again
	require.NoError(t, svc.Sync(ctx, sub.ID, model.BillingStatusTrial))
	require.NoError(t, svc.Sync(ctx, sub.ID, model.BillingStatusActive))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, notifier.To("+1"), 1)
}

func TestBillingService_NoticeFailureStaysInBackground(t *testing.T) {
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	notifier.failFor["+1"] = true
	w := startWorkers(t)
	failed := make(chan error, 1)
	w.SetErrorHandler(func(_ worker.Job, err error) { failed <- err })

	svc := NewBillingService(env.subscribers, notifier, w)
	activatedAt := utc("2025-03-10T07:00:00Z")
	sub := env.addSubscriber(t, subscriberOpts{Contact: "+1", Billing: model.BillingStatusPastDue}, &activatedAt)

	require.NoError(t, svc.Sync(context.Background(), sub.ID, model.BillingStatusTrial))
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, errTransport)
	case <-time.After(time.Second):
		t.Fatal("trial notice did not run")
	}
}

func TestBillingService_RejectsUnknownStatus(t *testing.T) {
	repo := new(MockSubscriberRepository)
	svc := NewBillingService(repo, nil, nil)

	err := svc.Sync(context.Background(), 1, model.BillingStatus("gold"))
	assert.Error(t, err)
	repo.AssertNotCalled(t, "UpdateBillingStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestBillingService_PropagatesRepositoryError(t *testing.T) {
	repo := new(MockSubscriberRepository)
	repo.On("UpdateBillingStatus", mock.Anything, int64(7), model.BillingStatusCanceled).
		Return(model.BillingStatus(""), errors.New("db down"))
	svc := NewBillingService(repo, nil, nil)

	err := svc.Sync(context.Background(), 7, model.BillingStatusCanceled)
	assert.EqualError(t, err, "db down")
	repo.AssertExpectations(t)
}
