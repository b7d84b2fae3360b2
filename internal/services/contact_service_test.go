package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requestCode(t *testing.T, svc *ContactService, notifier *fakeNotifier, subscriberID int64, address string) string {
	t.Helper()
	require.NoError(t, svc.RequestCode(context.Background(), subscriberID, address))
	sent := notifier.To(address)
	require.NotEmpty(t, sent)
	text := sent[len(sent)-1].Text
	return text[len(text)-6:]
}

func TestContactService_RecycledNumberTakeover(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	svc := NewContactService(env.subscribers, NewRedisVerifier(env.redis, time.Minute), notifier)
	activatedAt := utc("2025-03-10T07:00:00Z")

	first := env.addSubscriber(t, subscriberOpts{Contact: "+15550001"}, &activatedAt)
	second := env.addSubscriber(t, subscriberOpts{Contact: "+15550002"}, &activatedAt)

	code := requestCode(t, svc, notifier, second.ID, "+15550001")
	require.NoError(t, svc.Confirm(ctx, second.ID, "+15550001", code))

	owner, err := env.subscribers.FindByContact(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, second.ID, owner.ID)

	revoked := env.reload(t, first.ID)
	assert.Nil(t, revoked.Contact)
	assert.False(t, revoked.OptIn)

	// the original owner takes the number back the same way
	code = requestCode(t, svc, notifier, first.ID, "+15550001")
	require.NoError(t, svc.Confirm(ctx, first.ID, "+15550001", code))

	owner, err = env.subscribers.FindByContact(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, first.ID, owner.ID)
	assert.Nil(t, env.reload(t, second.ID).Contact)

	var owners int64
	require.NoError(t, env.db.Raw.Model(&repository.SubscriberEntity{}).Where("contact = ?", "+15550001").Count(&owners).Error)
	assert.Equal(t, int64(1), owners)
}

func TestContactService_ConfirmRejectsBadCode(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	svc := NewContactService(env.subscribers, NewRedisVerifier(env.redis, time.Minute), notifier)
	activatedAt := utc("2025-03-10T07:00:00Z")
	first := env.addSubscriber(t, subscriberOpts{Contact: "+15550001"}, &activatedAt)
	second := env.addSubscriber(t, subscriberOpts{Contact: "+15550002"}, &activatedAt)

	assert.ErrorIs(t, svc.Confirm(ctx, second.ID, "+15550001", "000000x"), ErrInvalidCode)

	code := requestCode(t, svc, notifier, second.ID, "+15550001")
	require.NoError(t, svc.Confirm(ctx, second.ID, "+15550001", code))

	// codes are single use
	assert.ErrorIs(t, svc.Confirm(ctx, first.ID, "+15550001", code), ErrInvalidCode)
	assert.ErrorIs(t, svc.Confirm(ctx, first.ID, " ", code), ErrInvalidContact)
}

func TestContactService_ConfirmOwnNumberIsNoop(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	notifier := newFakeNotifier()
	svc := NewContactService(env.subscribers, NewRedisVerifier(env.redis, time.Minute), notifier)
	activatedAt := utc("2025-03-10T07:00:00Z")
	sub := env.addSubscriber(t, subscriberOpts{Contact: "+15550001"}, &activatedAt)

	code := requestCode(t, svc, notifier, sub.ID, "+15550001")
	require.NoError(t, svc.Confirm(ctx, sub.ID, "+15550001", code))

	reloaded := env.reload(t, sub.ID)
	assert.Equal(t, "+15550001", reloaded.ContactAddress())
	assert.True(t, reloaded.OptIn)
}

func TestRedisVerifier_Expires(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	v := NewRedisVerifier(env.redis, time.Minute)

	code, err := v.Issue(ctx, "+1")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	env.mr.FastForward(2 * time.Minute)
	ok, err := v.Check(ctx, "+1", code)
	require.NoError(t, err)
	assert.False(t, ok)
}
