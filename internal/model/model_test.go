package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanguageForVersion(t *testing.T) {
	assert.Equal(t, LanguageTagalog, LanguageForVersion("ABTAG2001"))
	assert.Equal(t, LanguageSpanish, LanguageForVersion("BLPH"))
	assert.Equal(t, LanguageEnglish, LanguageForVersion("NABRE"))
	assert.Equal(t, LanguageEnglish, LanguageForVersion("unknown"))
	assert.Equal(t, LanguageEnglish, LanguageForVersion(""))

	for _, l := range Languages() {
		assert.Equal(t, l, LanguageForVersion(VersionForLanguage(l)))
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 59, m)

	_, _, err = ParseClock("24:00")
	assert.Error(t, err)
	_, _, err = ParseClock("7am")
	assert.Error(t, err)
}

func TestSubscriberCreateRequest_Validate(t *testing.T) {
	valid := SubscriberCreateRequest{Contact: "+15550001", DeliveryTime: "06:30", Timezone: "America/New_York"}
	assert.NoError(t, valid.Validate())

	noContact := valid
	noContact.Contact = ""
	assert.Error(t, noContact.Validate())

	badTime := valid
	badTime.DeliveryTime = "6:30pm"
	assert.Error(t, badTime.Validate())

	badBilling := valid
	badBilling.BillingStatus = "free"
	assert.Error(t, badBilling.Validate())
}

func TestBillingStatusEntitled(t *testing.T) {
	assert.True(t, BillingStatusActive.Entitled())
	assert.True(t, BillingStatusTrial.Entitled())
	assert.False(t, BillingStatusPastDue.Entitled())
	assert.False(t, BillingStatusCanceled.Entitled())
}

func TestDateKey(t *testing.T) {
	loc, err := time.LoadLocation("Pacific/Kiritimati")
	require.NoError(t, err)
	utc := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-01", DateKey(utc))
	assert.Equal(t, "2024-03-02", DateKey(utc.In(loc)))
}
