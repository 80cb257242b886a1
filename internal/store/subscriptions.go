package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-status-backend/internal/model"
)

// UpsertSubscription creates or replaces a subscription and the set of spots it follows.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription, spotIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Spots").Create(&sub).Error; err != nil {
			return err
		}

		var spots []*model.Spot
		if len(spotIDs) > 0 {
			if err := tx.Find(&spots, spotIDs).Error; err != nil {
				return err
			}
		}

		return tx.Model(&sub).Association("Spots").Replace(&spots)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Spots").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PushSubscription{}, ErrSubscriptionNotFound
	}
	if err != nil {
		return model.PushSubscription{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	return sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Spots").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
}

func (s *gormStore) SubscriptionsForSpot(ctx context.Context, spotID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_spot_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.spot_id = ?", spotID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for spot %d: %w", spotID, err)
	}
	return subs, nil
}
