package model

import "time"

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// InboundMessage is a provider webhook event normalized across channels.
type InboundMessage struct {
	MessageID  string    `json:"message_id"`
	Channel    Channel   `json:"channel"`
	Contact    string    `json:"contact"`
	Text       string    `json:"text"`
	ButtonID   string    `json:"button_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
