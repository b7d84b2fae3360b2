package repository

import (
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
)

type DeliveryLogEntity struct {
	ID                string    `gorm:"primaryKey;column:id"`
	SubscriberID      int64     `gorm:"column:subscriber_id;not null;index:idx_delivery_logs_subscriber_date"`
	DateKey           string    `gorm:"column:date_key;not null;index:idx_delivery_logs_subscriber_date"`
	Result            string    `gorm:"column:result;not null"`
	Template          string    `gorm:"column:template"`
	ProviderMessageID string    `gorm:"column:provider_message_id"`
	Error             string    `gorm:"column:error"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DeliveryLogEntity) TableName() string {
	return "delivery_logs"
}

func toDeliveryLogEntity(m *model.DeliveryLogEntry) *DeliveryLogEntity {
	if m == nil {
		return nil
	}
	return &DeliveryLogEntity{
		ID:                m.ID,
		SubscriberID:      m.SubscriberID,
		DateKey:           m.DateKey,
		Result:            string(m.Result),
		Template:          m.Template,
		ProviderMessageID: m.ProviderMessageID,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
	}
}

func toDeliveryLogModel(e *DeliveryLogEntity) *model.DeliveryLogEntry {
	if e == nil {
		return nil
	}
	return &model.DeliveryLogEntry{
		ID:                e.ID,
		SubscriberID:      e.SubscriberID,
		DateKey:           e.DateKey,
		Result:            model.DeliveryResult(e.Result),
		Template:          e.Template,
		ProviderMessageID: e.ProviderMessageID,
		Error:             e.Error,
		CreatedAt:         e.CreatedAt,
	}
}
