package repository

import (
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
)

type SubscriberEntity struct {
	ID                int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Contact           *string    `gorm:"column:contact;uniqueIndex:idx_subscribers_live_contact,where:delivery_status <> 'canceled' AND contact IS NOT NULL"`
	DeliveryTime      string     `gorm:"column:delivery_time;not null"`
	Timezone          string     `gorm:"column:timezone;not null;default:UTC"`
	BibleVersion      string     `gorm:"column:bible_version;not null;default:NABRE"`
	ContentPreference string     `gorm:"column:content_preference;not null;default:readings"`
	OptIn             bool       `gorm:"column:opt_in;not null;default:false"`
	DeliveryStatus    string     `gorm:"column:delivery_status;not null;default:pending_activation;index"`
	BillingStatus     string     `gorm:"column:billing_status;not null;default:trial"`
	LastInboundAt     *time.Time `gorm:"column:last_inbound_at"`
	LastDeliveredAt   *time.Time `gorm:"column:last_delivered_at"`
	OptedOutAt        *time.Time `gorm:"column:opted_out_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (SubscriberEntity) TableName() string {
	return "subscribers"
}

func toSubscriberEntity(m *model.Subscriber) *SubscriberEntity {
	if m == nil {
		return nil
	}
	return &SubscriberEntity{
		ID:                m.ID,
		Contact:           m.Contact,
		DeliveryTime:      m.DeliveryTime,
		Timezone:          m.Timezone,
		BibleVersion:      m.BibleVersion,
		ContentPreference: string(m.ContentPreference),
		OptIn:             m.OptIn,
		DeliveryStatus:    string(m.DeliveryStatus),
		BillingStatus:     string(m.BillingStatus),
		LastInboundAt:     m.LastInboundAt,
		LastDeliveredAt:   m.LastDeliveredAt,
		OptedOutAt:        m.OptedOutAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toSubscriberModel(e *SubscriberEntity) *model.Subscriber {
	if e == nil {
		return nil
	}
	return &model.Subscriber{
		ID:                e.ID,
		Contact:           e.Contact,
		DeliveryTime:      e.DeliveryTime,
		Timezone:          e.Timezone,
		BibleVersion:      e.BibleVersion,
		ContentPreference: model.ContentPreference(e.ContentPreference),
		OptIn:             e.OptIn,
		DeliveryStatus:    model.DeliveryStatus(e.DeliveryStatus),
		BillingStatus:     model.BillingStatus(e.BillingStatus),
		LastInboundAt:     e.LastInboundAt,
		LastDeliveredAt:   e.LastDeliveredAt,
		OptedOutAt:        e.OptedOutAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toSubscriberModels(entities []*SubscriberEntity) []*model.Subscriber {
	if entities == nil {
		return nil
	}
	models := make([]*model.Subscriber, len(entities))
	for i, e := range entities {
		models[i] = toSubscriberModel(e)
	}
	return models
}
