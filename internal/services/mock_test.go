package services

import (
	"context"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockSubscriberRepository struct {
	mock.Mock
}

func (m *MockSubscriberRepository) FindByID(ctx context.Context, id int64) (*model.Subscriber, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) FindByContact(ctx context.Context, address string) (*model.Subscriber, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) FindEligibleForDelivery(ctx context.Context) ([]*model.Subscriber, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Subscriber), args.Error(1)
}

func (m *MockSubscriberRepository) TouchInbound(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSubscriberRepository) ResumeIfPaused(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriberRepository) PauseIfStale(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	args := m.Called(ctx, id, cutoff)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubscriberRepository) Activate(ctx context.Context, id int64, at time.Time) (model.DeliveryStatus, error) {
	args := m.Called(ctx, id, at)
	return args.Get(0).(model.DeliveryStatus), args.Error(1)
}

func (m *MockSubscriberRepository) OptOut(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSubscriberRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockSubscriberRepository) UpdateBillingStatus(ctx context.Context, id int64, status model.BillingStatus) (model.BillingStatus, error) {
	args := m.Called(ctx, id, status)
	return args.Get(0).(model.BillingStatus), args.Error(1)
}

func (m *MockSubscriberRepository) ReassignContact(ctx context.Context, oldOwnerID *int64, newOwnerID int64, address string) error {
	return m.Called(ctx, oldOwnerID, newOwnerID, address).Error(0)
}
