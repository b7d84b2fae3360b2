package services

import (
	"testing"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/stretchr/testify/assert"
)

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLocalClock(t *testing.T) {
	now := utc("2025-03-11T13:07:42Z")

	assert.Equal(t, "13:07", LocalClock(now, "UTC"))
	assert.Equal(t, "08:07", LocalClock(now, "America/Chicago"))
	assert.Equal(t, "21:07", LocalClock(now, "Asia/Manila"))
	assert.Equal(t, "18:37", LocalClock(now, "Asia/Kolkata"))
}

func TestLocalClock_InvalidTimezoneFallsBackToUTC(t *testing.T) {
	now := utc("2025-03-11T13:07:00Z")

	assert.Equal(t, "13:07", LocalClock(now, "Mars/Olympus_Mons"))
	assert.Equal(t, "13:07", LocalClock(now, ""))

	_, ok := LoadLocation("Mars/Olympus_Mons")
	assert.False(t, ok)
}

func TestTimeMatcher_ExactMinute(t *testing.T) {
	m := NewTimeMatcher(0)

	assert.True(t, m.Matches(utc("2025-03-11T13:00:59Z"), "America/Chicago", "08:00"))
	assert.False(t, m.Matches(utc("2025-03-11T13:01:00Z"), "America/Chicago", "08:00"))
	assert.False(t, m.Matches(utc("2025-03-11T12:59:59Z"), "America/Chicago", "08:00"))
}

func TestTimeMatcher_CatchUpWindow(t *testing.T) {
	m := NewTimeMatcher(5 * time.Minute)

	cases := map[string]bool{
		"2025-03-11T06:59:00Z": false,
		"2025-03-11T07:00:00Z": true,
		"2025-03-11T07:04:59Z": true,
		"2025-03-11T07:05:00Z": false,
	}
	for at, want := range cases {
		assert.Equal(t, want, m.Matches(utc(at), "UTC", "07:00"), at)
	}
}

func TestTimeMatcher_CatchUpStopsAtLocalMidnight(t *testing.T) {
	m := NewTimeMatcher(5 * time.Minute)

	assert.True(t, m.Matches(utc("2025-03-11T23:59:00Z"), "UTC", "23:58"))
	assert.False(t, m.Matches(utc("2025-03-12T00:00:00Z"), "UTC", "23:58"))
	assert.False(t, m.Matches(utc("2025-03-12T00:01:00Z"), "UTC", "23:58"))
}

func TestTimeMatcher_UTCPlus14(t *testing.T) {
	m := NewTimeMatcher(0)

	// 23:59 in Kiritimati is 09:59 UTC on the same calendar day
	assert.True(t, m.Matches(utc("2025-03-11T09:59:00Z"), "Pacific/Kiritimati", "23:59"))
	assert.False(t, m.Matches(utc("2025-03-11T23:59:00Z"), "Pacific/Kiritimati", "23:59"))
}

func TestTimeMatcher_InvalidPreferredTime(t *testing.T) {
	m := NewTimeMatcher(0)
	assert.False(t, m.Matches(utc("2025-03-11T07:00:00Z"), "UTC", "7am"))
}

func TestTimeMatcher_MatchesLocalAgreesWithMatches(t *testing.T) {
	m := NewTimeMatcher(5 * time.Minute)
	now := utc("2025-03-11T13:03:00Z")
	sub := &model.Subscriber{ID: 7, Timezone: "America/Chicago"}

	local := SubscriberLocalTime(now, sub)
	assert.Equal(t, "08:03", local.Format("15:04"))
	assert.Equal(t, m.Matches(now, sub.Timezone, "08:00"), m.MatchesLocal(local, "08:00"))
	assert.True(t, m.MatchesLocal(local, "08:00"))
	assert.False(t, m.MatchesLocal(local, "07:55"))
	assert.Equal(t, LocalDateKey(now, sub.Timezone), model.DateKey(local))
}

func TestLocalDateKey(t *testing.T) {
	now := utc("2025-03-11T10:30:00Z")

	assert.Equal(t, "2025-03-11", LocalDateKey(now, "UTC"))
	assert.Equal(t, "2025-03-12", LocalDateKey(now, "Pacific/Kiritimati"))
	assert.Equal(t, "2025-03-11", LocalDateKey(now, "America/Los_Angeles"))
	assert.Equal(t, "2025-03-10", LocalDateKey(utc("2025-03-11T03:00:00Z"), "America/Los_Angeles"))
}

func TestComplianceGate(t *testing.T) {
	gate := NewComplianceGate(24 * time.Hour)
	now := utc("2025-03-11T12:00:00Z")

	assert.Equal(t, WindowExpired, gate.Evaluate(nil, now))
	assert.Equal(t, WindowOpen, gate.Evaluate(ptr(now.Add(-time.Hour)), now))
	assert.Equal(t, WindowOpen, gate.Evaluate(ptr(now.Add(-24*time.Hour)), now))
	assert.Equal(t, WindowExpired, gate.Evaluate(ptr(now.Add(-24*time.Hour-time.Second)), now))
	assert.Equal(t, now.Add(-24*time.Hour), gate.Cutoff(now))
	assert.Equal(t, "expired", WindowExpired.String())
}
