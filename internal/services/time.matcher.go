package services

import (
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/logger"
)

const minutesPerDay = 24 * 60

var locations sync.Map // name -> *time.Location

// LoadLocation resolves an IANA zone name. Unknown or empty names resolve to
// UTC and ok is false.
func LoadLocation(name string) (loc *time.Location, ok bool) {
	if name == "" {
		return time.UTC, false
	}
	if v, hit := locations.Load(name); hit {
		return v.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	locations.Store(name, loc)
	return loc, true
}

var unknownZone = func(timezone string, subscriberID int64) {
	logger.Warn("[time] unknown timezone, using UTC", "timezone", timezone, "subscriber_id", subscriberID)
}

// LocalTime is now as seen in timezone, truncated to the minute. Invalid
// zones are treated as UTC and logged.
func LocalTime(now time.Time, timezone string) time.Time {
	return localTime(now, timezone, 0)
}

// SubscriberLocalTime is LocalTime for sub. Callers that need both the clock
// and the date key derive them from one result so a bad zone warns once.
func SubscriberLocalTime(now time.Time, sub *model.Subscriber) time.Time {
	return localTime(now, sub.Timezone, sub.ID)
}

func localTime(now time.Time, timezone string, subscriberID int64) time.Time {
	loc, ok := LoadLocation(timezone)
	if !ok {
		unknownZone(timezone, subscriberID)
	}
	return now.In(loc).Truncate(time.Minute)
}

// LocalClock formats the local wall time as 24h HH:MM.
func LocalClock(now time.Time, timezone string) string {
	return LocalTime(now, timezone).Format("15:04")
}

// LocalDateKey is the calendar day the subscriber is living in at now.
func LocalDateKey(now time.Time, timezone string) string {
	return model.DateKey(LocalTime(now, timezone))
}

// TimeMatcher decides whether a subscriber's preferred delivery minute has
// come. With a catch-up window a tick that arrives late still matches, up
// to local midnight.
type TimeMatcher struct {
	window int // minutes, at least 1
}

func NewTimeMatcher(catchUp time.Duration) *TimeMatcher {
	w := int(catchUp / time.Minute)
	if w < 1 {
		w = 1
	}
	return &TimeMatcher{window: w}
}

// Matches reports whether local minute lies in [preferred, preferred+window).
func (m *TimeMatcher) Matches(now time.Time, timezone, preferred string) bool {
	return m.MatchesLocal(LocalTime(now, timezone), preferred)
}

// MatchesLocal is Matches for a wall time already in the subscriber's zone.
func (m *TimeMatcher) MatchesLocal(local time.Time, preferred string) bool {
	hour, minute, err := model.ParseClock(preferred)
	if err != nil {
		logger.Warn("[time] invalid preferred delivery time", "delivery_time", preferred)
		return false
	}
	current := local.Hour()*60 + local.Minute()
	start := hour*60 + minute
	end := start + m.window
	if end > minutesPerDay {
		end = minutesPerDay
	}
	return current >= start && current < end
}
