package model

import "time"

type DeliveryResult string

const (
	DeliveryResultSuccess DeliveryResult = "success"
	DeliveryResultFailed  DeliveryResult = "failed"
)

// DeliveryLogEntry is an append-only audit record of a dispatch attempt.
type DeliveryLogEntry struct {
	ID                string         `json:"id"`
	SubscriberID      int64          `json:"subscriber_id"`
	DateKey           string         `json:"date_key"`
	Result            DeliveryResult `json:"result"`
	Template          string         `json:"template"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}
