package model

import (
	"errors"
	"fmt"
	"time"
)

// DeliveryStatus is the lifecycle stage controlling scheduled sends.
type DeliveryStatus string

const (
	DeliveryStatusPendingActivation DeliveryStatus = "pending_activation"
	DeliveryStatusActive            DeliveryStatus = "active"
	DeliveryStatusPausedInactive    DeliveryStatus = "paused_inactive"
	DeliveryStatusCanceled          DeliveryStatus = "canceled"
)

// BillingStatus is owned by the billing provider and only mirrored here.
type BillingStatus string

const (
	BillingStatusActive   BillingStatus = "active"
	BillingStatusTrial    BillingStatus = "trial"
	BillingStatusPastDue  BillingStatus = "past_due"
	BillingStatusCanceled BillingStatus = "canceled"
)

func (s BillingStatus) Valid() bool {
	switch s {
	case BillingStatusActive, BillingStatusTrial, BillingStatusPastDue, BillingStatusCanceled:
		return true
	}
	return false
}

// Entitled reports whether the subscription allows deliveries.
func (s BillingStatus) Entitled() bool {
	return s == BillingStatusActive || s == BillingStatusTrial
}

type ContentPreference string

const (
	ContentReadings ContentPreference = "readings"
	ContentSummary  ContentPreference = "summary"
)

type Subscriber struct {
	ID                int64             `json:"id"`
	Contact           *string           `json:"contact,omitempty"`
	DeliveryTime      string            `json:"delivery_time"` // HH:MM, 24h
	Timezone          string            `json:"timezone"`
	BibleVersion      string            `json:"bible_version"`
	ContentPreference ContentPreference `json:"content_preference"`
	OptIn             bool              `json:"opt_in"`
	DeliveryStatus    DeliveryStatus    `json:"delivery_status"`
	BillingStatus     BillingStatus     `json:"billing_status"`
	LastInboundAt     *time.Time        `json:"last_inbound_at,omitempty"`
	LastDeliveredAt   *time.Time        `json:"last_delivered_at,omitempty"`
	OptedOutAt        *time.Time        `json:"opted_out_at,omitempty"` // set by STOP, cleared only by START
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (s *Subscriber) Language() Language {
	return LanguageForVersion(s.BibleVersion)
}

func (s *Subscriber) ContactAddress() string {
	if s.Contact == nil {
		return ""
	}
	return *s.Contact
}

// SubscriberCreateRequest registers a new subscriber in pending_activation.
type SubscriberCreateRequest struct {
	Contact           string
	DeliveryTime      string
	Timezone          string
	BibleVersion      string
	ContentPreference ContentPreference
	BillingStatus     BillingStatus
}

func (p SubscriberCreateRequest) Validate() error {
	if p.Contact == "" {
		return errors.New("contact is required")
	}
	if _, _, err := ParseClock(p.DeliveryTime); err != nil {
		return err
	}
	if p.Timezone == "" {
		return errors.New("timezone is required")
	}
	if p.ContentPreference != "" && p.ContentPreference != ContentReadings && p.ContentPreference != ContentSummary {
		return fmt.Errorf("unknown content preference %q", p.ContentPreference)
	}
	if p.BillingStatus != "" && !p.BillingStatus.Valid() {
		return fmt.Errorf("unknown billing status %q", p.BillingStatus)
	}
	return nil
}

// ParseClock parses a 24h "HH:MM" value.
func ParseClock(v string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delivery time %q: want HH:MM", v)
	}
	return t.Hour(), t.Minute(), nil
}
