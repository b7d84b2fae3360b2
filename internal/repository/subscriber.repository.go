package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/nimasrn/daily-mass/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrContactTaken       = errors.New("contact already belongs to another subscriber")
	ErrOwnerChanged       = errors.New("contact owner changed during reassignment")
)

type SubscriberRepository struct {
	*pg.DB
}

func NewSubscriberRepository(db *pg.DB) *SubscriberRepository {
	return &SubscriberRepository{
		db,
	}
}

// Create registers a subscriber in pending_activation with opt-in off.
func (r *SubscriberRepository) Create(ctx context.Context, req model.SubscriberCreateRequest) (*model.Subscriber, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	contact := req.Contact
	sub := &model.Subscriber{
		Contact:           &contact,
		DeliveryTime:      req.DeliveryTime,
		Timezone:          req.Timezone,
		BibleVersion:      req.BibleVersion,
		ContentPreference: req.ContentPreference,
		DeliveryStatus:    model.DeliveryStatusPendingActivation,
		BillingStatus:     req.BillingStatus,
	}
	if sub.BibleVersion == "" {
		sub.BibleVersion = model.DefaultBibleVersion
	}
	if sub.ContentPreference == "" {
		sub.ContentPreference = model.ContentReadings
	}
	if sub.BillingStatus == "" {
		sub.BillingStatus = model.BillingStatusTrial
	}
	entity := toSubscriberEntity(sub)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrContactTaken
		}
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return toSubscriberModel(entity), nil
}

func (r *SubscriberRepository) FindByID(ctx context.Context, id int64) (*model.Subscriber, error) {
	var entity SubscriberEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return toSubscriberModel(&entity), nil
}

// FindByContact returns the live (non-canceled) owner of address.
func (r *SubscriberRepository) FindByContact(ctx context.Context, address string) (*model.Subscriber, error) {
	var entity SubscriberEntity
	err := r.Read(ctx).
		Where("contact = ? AND delivery_status <> ?", address, model.DeliveryStatusCanceled).
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return toSubscriberModel(&entity), nil
}

// FindEligibleForDelivery lists opted-in active subscribers with an entitled
// subscription and a contact address.
func (r *SubscriberRepository) FindEligibleForDelivery(ctx context.Context) ([]*model.Subscriber, error) {
	var entities []*SubscriberEntity
	err := r.Read(ctx).
		Where("opt_in = ?", true).
		Where("delivery_status = ?", model.DeliveryStatusActive).
		Where("billing_status IN ?", []string{string(model.BillingStatusActive), string(model.BillingStatusTrial)}).
		Where("contact IS NOT NULL AND contact <> ''").
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, fmt.Errorf("find eligible subscribers: %w", err)
	}
	return toSubscriberModels(entities), nil
}

// TouchInbound moves last_inbound_at forward to at. An older at never
// overwrites a newer stored value.
func (r *SubscriberRepository) TouchInbound(ctx context.Context, id int64, at time.Time) error {
	at = at.UTC()
	return r.Write(ctx).
		Model(&SubscriberEntity{}).
		Where("id = ?", id).
		Where("last_inbound_at IS NULL OR last_inbound_at < ?", at).
		UpdateColumn("last_inbound_at", at).
		Error
}

// ResumeIfPaused restores a paused_inactive subscriber to active with opt-in.
// Other statuses, and subscribers who opted out, are left untouched.
func (r *SubscriberRepository) ResumeIfPaused(ctx context.Context, id int64) (bool, error) {
	res := r.Write(ctx).
		Model(&SubscriberEntity{}).
		Where("id = ? AND delivery_status = ?", id, model.DeliveryStatusPausedInactive).
		Where("opted_out_at IS NULL").
		Updates(map[string]interface{}{
			"delivery_status": model.DeliveryStatusActive,
			"opt_in":          true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PauseIfStale pauses an active subscriber whose last inbound message is
// older than cutoff (or missing). It is a no-op when a concurrent inbound
// message has already refreshed the window.
func (r *SubscriberRepository) PauseIfStale(ctx context.Context, id int64, cutoff time.Time) (bool, error) {
	res := r.Write(ctx).
		Model(&SubscriberEntity{}).
		Where("id = ? AND delivery_status = ?", id, model.DeliveryStatusActive).
		Where("last_inbound_at IS NULL OR last_inbound_at < ?", cutoff.UTC()).
		Updates(map[string]interface{}{
			"delivery_status": model.DeliveryStatusPausedInactive,
			"opt_in":          false,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Activate opts the subscriber in, marks it active and refreshes the
// inbound window. It returns the status held before the transition.
func (r *SubscriberRepository) Activate(ctx context.Context, id int64, at time.Time) (model.DeliveryStatus, error) {
	var previous model.DeliveryStatus
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity SubscriberEntity
		err := r.Write(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&entity).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}
		previous = model.DeliveryStatus(entity.DeliveryStatus)

		err = r.Write(ctx).
			Model(&SubscriberEntity{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"delivery_status": model.DeliveryStatusActive,
				"opt_in":          true,
				"opted_out_at":    gorm.Expr("NULL"),
			}).
			Error
		if err != nil {
			return err
		}
		return r.TouchInbound(ctx, id, at)
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// OptOut clears the opt-in flag and records when. The delivery status is
// kept; the record survives an inactivity pause so only START opts back in.
func (r *SubscriberRepository) OptOut(ctx context.Context, id int64, at time.Time) error {
	res := r.Write(ctx).
		Model(&SubscriberEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"opt_in":       false,
			"opted_out_at": at.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

func (r *SubscriberRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	return r.Write(ctx).
		Model(&SubscriberEntity{}).
		Where("id = ?", id).
		UpdateColumn("last_delivered_at", at.UTC()).
		Error
}

// UpdateBillingStatus stores the mirrored billing status and returns the
// previous one.
func (r *SubscriberRepository) UpdateBillingStatus(ctx context.Context, id int64, status model.BillingStatus) (model.BillingStatus, error) {
	var previous model.BillingStatus
	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		var entity SubscriberEntity
		err := r.Write(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "billing_status").
			Where("id = ?", id).
			First(&entity).
			Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriberNotFound
			}
			return err
		}
		previous = model.BillingStatus(entity.BillingStatus)
		return r.Write(ctx).
			Model(&SubscriberEntity{}).
			Where("id = ?", id).
			Update("billing_status", status).
			Error
	})
	return previous, err
}

// ReassignContact hands address to newOwnerID. When oldOwnerID is set, that
// subscriber's claim is revoked first (contact cleared, opt-in off). Both
// steps commit together or not at all.
func (r *SubscriberRepository) ReassignContact(ctx context.Context, oldOwnerID *int64, newOwnerID int64, address string) error {
	return r.WithinTransaction(ctx, func(ctx context.Context) error {
		if oldOwnerID != nil && *oldOwnerID != newOwnerID {
			res := r.Write(ctx).
				Model(&SubscriberEntity{}).
				Where("id = ? AND contact = ?", *oldOwnerID, address).
				Updates(map[string]interface{}{
					"contact": gorm.Expr("NULL"),
					"opt_in":  false,
				})
			if res.Error != nil {
				return fmt.Errorf("revoke previous owner: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrOwnerChanged
			}
		}

		res := r.Write(ctx).
			Model(&SubscriberEntity{}).
			Where("id = ?", newOwnerID).
			Update("contact", address)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrContactTaken
			}
			return fmt.Errorf("assign contact: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrSubscriberNotFound
		}
		return nil
	})
}
