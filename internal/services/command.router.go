package services

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/internal/repository"
	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/nimasrn/daily-mass/pkg/prom"
)

// Action names the reply a message produced.
type Action string

const (
	ActionWelcome       Action = "welcome"
	ActionResumed       Action = "resumed"
	ActionOptedOut      Action = "opted_out"
	ActionNotRegistered Action = "not_registered"
	ActionReadings      Action = "readings"
	ActionFetchFailed   Action = "fetch_failed"
	ActionSummary       Action = "summary"
	ActionNotReady      Action = "not_ready"
	ActionSilent        Action = "silent"
	// ActionLookupFailed means nothing was done; the message may be retried.
	ActionLookupFailed Action = "lookup_failed"
)

// Outcome describes what handling one inbound message did.
type Outcome struct {
	Intent       Intent
	Action       Action
	SubscriberID int64
	MessagesSent int
	// SendErr is set when the reply could not be delivered.
	SendErr error
}

type RouterConfig struct {
	BaseURL         string
	MessageDelay    time.Duration
	ReadingsTimeout time.Duration
}

// CommandRouter applies an inbound message to its subscriber and replies.
type CommandRouter struct {
	subscribers SubscriberRepository
	readings    ReadingsFetcher
	cache       *ReflectionCache
	notifier    Notifier
	config      RouterConfig
}

func NewCommandRouter(subscribers SubscriberRepository, readings ReadingsFetcher, cache *ReflectionCache, notifier Notifier, config RouterConfig) *CommandRouter {
	if config.ReadingsTimeout <= 0 {
		config.ReadingsTimeout = 10 * time.Second
	}
	return &CommandRouter{
		subscribers: subscribers,
		readings:    readings,
		cache:       cache,
		notifier:    notifier,
		config:      config,
	}
}

// Handle processes msg received at now. It never returns collaborator
// errors; the outcome says what happened.
func (r *CommandRouter) Handle(ctx context.Context, msg model.InboundMessage, now time.Time) Outcome {
	intent := Classify(msg.Text, msg.ButtonID)
	prom.AddInboundIntent(string(intent))
	out := Outcome{Intent: intent}

	sub, err := r.subscribers.FindByContact(ctx, msg.Contact)
	if err != nil && !errors.Is(err, repository.ErrSubscriberNotFound) {
		logger.Error("[router] subscriber lookup failed", "contact", msg.Contact, "intent", intent, "error", err)
		out.Action = ActionLookupFailed
		return out
	}
	if sub == nil {
		return r.handleUnknown(ctx, msg, out)
	}
	out.SubscriberID = sub.ID

	logger.Info("[router] inbound message", "contact", msg.Contact, "intent", intent, "subscriber_id", sub.ID)

	switch intent {
	case IntentStop:
		return r.stop(ctx, sub, now, out)
	case IntentStart:
		return r.start(ctx, sub, now, out)
	case IntentReading:
		r.renew(ctx, sub, now)
		return r.sendReadings(ctx, sub, now, out)
	case IntentSummary:
		r.renew(ctx, sub, now)
		return r.sendSummary(ctx, sub, now, out)
	default:
		r.renew(ctx, sub, now)
		out.Action = ActionSilent
		return out
	}
}

func (r *CommandRouter) handleUnknown(ctx context.Context, msg model.InboundMessage, out Outcome) Outcome {
	logger.Info("[router] message from unregistered contact", "contact", msg.Contact, "intent", out.Intent)
	switch out.Intent {
	case IntentStart, IntentReading, IntentSummary:
		out.Action = ActionNotRegistered
		r.reply(ctx, msg.Contact, messagesFor(model.LanguageEnglish).NotRegistered, &out)
	default:
		out.Action = ActionSilent
	}
	return out
}

// renew extends the compliance window and lifts an inactivity pause.
func (r *CommandRouter) renew(ctx context.Context, sub *model.Subscriber, now time.Time) {
	if err := r.subscribers.TouchInbound(ctx, sub.ID, now); err != nil {
		logger.Error("[router] failed to refresh inbound window", "subscriber_id", sub.ID, "error", err)
	}
	resumed, err := r.subscribers.ResumeIfPaused(ctx, sub.ID)
	if err != nil {
		logger.Error("[router] failed to resume subscriber", "subscriber_id", sub.ID, "error", err)
		return
	}
	if resumed {
		logger.Info("[router] paused subscriber resumed by inbound message", "subscriber_id", sub.ID)
	}
}

func (r *CommandRouter) stop(ctx context.Context, sub *model.Subscriber, now time.Time, out Outcome) Outcome {
	if err := r.subscribers.TouchInbound(ctx, sub.ID, now); err != nil {
		logger.Error("[router] failed to refresh inbound window", "subscriber_id", sub.ID, "error", err)
	}
	if err := r.subscribers.OptOut(ctx, sub.ID, now); err != nil {
		logger.Error("[router] opt-out failed", "subscriber_id", sub.ID, "error", err)
	}
	out.Action = ActionOptedOut
	r.reply(ctx, sub.ContactAddress(), messagesFor(sub.Language()).OptedOut, &out)
	return out
}

func (r *CommandRouter) start(ctx context.Context, sub *model.Subscriber, now time.Time, out Outcome) Outcome {
	previous, err := r.subscribers.Activate(ctx, sub.ID, now)
	if err != nil {
		logger.Error("[router] activation failed", "subscriber_id", sub.ID, "error", err)
		previous = sub.DeliveryStatus
	}

	messages := messagesFor(sub.Language())
	text := messages.Resumed
	out.Action = ActionResumed
	if previous == model.DeliveryStatusPendingActivation {
		text = messages.Welcome
		out.Action = ActionWelcome
	}
	r.reply(ctx, sub.ContactAddress(), text, &out)
	return out
}

// sendReadings sends the day's passages as separate messages, in order,
// pausing between them so the provider keeps the order.
func (r *CommandRouter) sendReadings(ctx context.Context, sub *model.Subscriber, now time.Time, out Outcome) Outcome {
	dateKey := LocalDateKey(now, sub.Timezone)
	version := sub.BibleVersion
	if version == "" {
		version = model.DefaultBibleVersion
	}
	messages := messagesFor(sub.Language())

	fetchCtx, cancel := context.WithTimeout(ctx, r.config.ReadingsTimeout)
	readings, err := r.readings.Fetch(fetchCtx, dateKey, version)
	cancel()
	if err != nil {
		logger.Warn("[router] readings fetch failed", "subscriber_id", sub.ID, "date_key", dateKey, "error", err)
		out.Action = ActionFetchFailed
		r.reply(ctx, sub.ContactAddress(), messages.FetchFailed, &out)
		return out
	}

	parts := make([]string, 0, 4)
	if !readings.FirstReading.Empty() {
		parts = append(parts, formatPassage(messages.FirstReading, &readings.FirstReading))
	}
	if !readings.Psalm.Empty() {
		parts = append(parts, formatPassage(messages.Psalm, &readings.Psalm))
	}
	if !readings.SecondReading.Empty() {
		parts = append(parts, formatPassage(messages.SecondReading, readings.SecondReading))
	}
	link := ReadingsLink(r.config.BaseURL, dateKey, version)
	gospel := messages.ReadMore + ": " + link
	if !readings.Gospel.Empty() {
		gospel = formatPassage(messages.Gospel, &readings.Gospel) + "\n\n" + gospel
	}
	parts = append(parts, gospel)

	out.Action = ActionReadings
	for i, text := range parts {
		if i > 0 && r.config.MessageDelay > 0 {
			select {
			case <-ctx.Done():
				out.SendErr = ctx.Err()
				return out
			case <-time.After(r.config.MessageDelay):
			}
		}
		if !r.reply(ctx, sub.ContactAddress(), text, &out) {
			// the rest would arrive out of order
			return out
		}
	}
	return out
}

func (r *CommandRouter) sendSummary(ctx context.Context, sub *model.Subscriber, now time.Time, out Outcome) Outcome {
	dateKey := LocalDateKey(now, sub.Timezone)
	language := sub.Language()
	messages := messagesFor(language)

	var content string
	err := ErrNotReady
	if r.cache != nil {
		content, err = r.cache.GetOrGenerate(ctx, dateKey, language)
	}
	if err != nil {
		logger.Info("[router] reflection not ready", "subscriber_id", sub.ID, "date_key", dateKey, "language", language, "error", err)
		out.Action = ActionNotReady
		r.reply(ctx, sub.ContactAddress(), messages.NotReady, &out)
		return out
	}

	link := ReadingsLink(r.config.BaseURL, dateKey, sub.BibleVersion)
	text := "*" + messages.Reflection + "*\n\n" + content + "\n\n" + messages.ReadMore + ": " + link
	out.Action = ActionSummary
	r.reply(ctx, sub.ContactAddress(), text, &out)
	return out
}

// reply sends one text and records the result on out.
func (r *CommandRouter) reply(ctx context.Context, to, text string, out *Outcome) bool {
	if text == "" || to == "" {
		return true
	}
	if _, err := r.notifier.SendMessage(ctx, to, truncate(text)); err != nil {
		logger.Error("[router] reply failed", "contact", to, "subscriber_id", out.SubscriberID, "action", out.Action, "error", err)
		out.SendErr = err
		return false
	}
	out.MessagesSent++
	return true
}
