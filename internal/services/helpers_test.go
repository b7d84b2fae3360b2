package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/pkg/redis"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("transport down")

type sentMessage struct {
	To        string
	Text      string
	Template  string
	Language  string
	Variables []string
}

// fakeNotifier records every send. Sends to contacts in failFor fail.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
	seq     atomic.Int64
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{failFor: map[string]bool{}}
}

func (n *fakeNotifier) SendMessage(_ context.Context, to, text string) (string, error) {
	return n.record(sentMessage{To: to, Text: text})
}

func (n *fakeNotifier) SendTemplate(_ context.Context, to, templateName, languageCode string, variables []string) (string, error) {
	return n.record(sentMessage{To: to, Template: templateName, Language: languageCode, Variables: variables})
}

func (n *fakeNotifier) record(m sentMessage) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[m.To] {
		return "", errTransport
	}
	n.sent = append(n.sent, m)
	return fmt.Sprintf("msg-%d", n.seq.Add(1)), nil
}

func (n *fakeNotifier) To(contact string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.To == contact {
			out = append(out, m)
		}
	}
	return out
}

func (n *fakeNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type stubReadings struct {
	mu       sync.Mutex
	readings *model.Readings
	err      error
	calls    []string // dateKey/version
}

func (s *stubReadings) Fetch(_ context.Context, dateKey, version string) (*model.Readings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, dateKey+"/"+version)
	if s.err != nil {
		return nil, s.err
	}
	r := *s.readings
	r.Date = dateKey
	r.Version = version
	return &r, nil
}

func (s *stubReadings) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func weekdayReadings() *model.Readings {
	return &model.Readings{
		FirstReading: model.Passage{Reference: "Is 55:10-11", Text: "So shall my word be"},
		Psalm:        model.Passage{Reference: "Ps 34:4-7", Text: "From all their distress God rescues the just."},
		Gospel:       model.Passage{Reference: "Mt 6:7-15", Text: "This is how you are to pray"},
	}
}

// countingGenerator returns "<language> reflection" after delay.
type countingGenerator struct {
	calls   atomic.Int32
	delay   time.Duration
	fail    atomic.Bool
	empty   atomic.Bool
	started chan struct{}
}

func (g *countingGenerator) Generate(ctx context.Context, _ *model.Readings, language model.Language) (string, error) {
	g.calls.Add(1)
	if g.started != nil {
		select {
		case g.started <- struct{}{}:
		default:
		}
	}
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.delay):
		}
	}
	if g.fail.Load() {
		return "", errors.New("model overloaded")
	}
	if g.empty.Load() {
		return "", nil
	}
	return string(language) + " reflection", nil
}

type testEnv struct {
	db          *repository.TestDB
	subscribers *repository.SubscriberRepository
	reflections *repository.ReflectionRepository
	deliveryLog *repository.DeliveryLogRepository
	mr          *miniredis.Miniredis
	redis       redis.RedisAdapter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := repository.SetupTestDB(t)
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return &testEnv{
		db:          db,
		subscribers: repository.NewSubscriberRepository(db.DB),
		reflections: repository.NewReflectionRepository(db.DB),
		deliveryLog: repository.NewDeliveryLogRepository(db.DB),
		mr:          mr,
		redis:       adapter,
	}
}

type subscriberOpts struct {
	Contact      string
	DeliveryTime string
	Timezone     string
	Version      string
	Billing      model.BillingStatus
}

// addSubscriber registers a subscriber and, unless pending is requested via
// activateAt == nil, activates it at activateAt.
func (e *testEnv) addSubscriber(t *testing.T, o subscriberOpts, activateAt *time.Time) *model.Subscriber {
	t.Helper()
	ctx := context.Background()
	if o.DeliveryTime == "" {
		o.DeliveryTime = "07:00"
	}
	if o.Timezone == "" {
		o.Timezone = "UTC"
	}
	sub, err := e.subscribers.Create(ctx, model.SubscriberCreateRequest{
		Contact:       o.Contact,
		DeliveryTime:  o.DeliveryTime,
		Timezone:      o.Timezone,
		BibleVersion:  o.Version,
		BillingStatus: o.Billing,
	})
	require.NoError(t, err)
	if activateAt != nil {
		_, err = e.subscribers.Activate(ctx, sub.ID, *activateAt)
		require.NoError(t, err)
	}
	sub, err = e.subscribers.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	return sub
}

func (e *testEnv) reload(t *testing.T, id int64) *model.Subscriber {
	t.Helper()
	sub, err := e.subscribers.FindByID(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func ptr[T any](v T) *T { return &v }
