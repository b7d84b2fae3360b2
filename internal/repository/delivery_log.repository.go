package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/pg"
)

type DeliveryLogRepository struct {
	*pg.DB
}

func NewDeliveryLogRepository(db *pg.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{
		db,
	}
}

// Create appends an entry. Entries are never updated.
func (r *DeliveryLogRepository) Create(ctx context.Context, entry *model.DeliveryLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entity := toDeliveryLogEntity(entry)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("append delivery log: %w", err)
	}
	entry.CreatedAt = entity.CreatedAt
	return nil
}

// ExistsForDate reports whether a successful delivery was logged for the
// subscriber on dateKey.
func (r *DeliveryLogRepository) ExistsForDate(ctx context.Context, subscriberID int64, dateKey string) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&DeliveryLogEntity{}).
		Where("subscriber_id = ? AND date_key = ? AND result = ?", subscriberID, dateKey, model.DeliveryResultSuccess).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *DeliveryLogRepository) ListBySubscriber(ctx context.Context, subscriberID int64, limit int) ([]*model.DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entities []*DeliveryLogEntity
	err := r.Read(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	out := make([]*model.DeliveryLogEntry, len(entities))
	for i, e := range entities {
		out[i] = toDeliveryLogModel(e)
	}
	return out, nil
}
