package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-status-backend/internal/model"
)

// SpotStore is the repository for spot occupancy rows.
type SpotStore interface {
	GetSpot(ctx context.Context, id int64) (model.Spot, error)
	ListSpots(ctx context.Context) ([]model.Spot, error)
	// CompareAndSetOccupied writes next only if the row still holds expected.
	// It reports false, without error, when the row changed underneath the caller.
	CompareAndSetOccupied(ctx context.Context, id int64, expected, next bool, at time.Time, distance *float64) (bool, error)
	SetOccupied(ctx context.Context, id int64, occupied bool, at time.Time) error
	RecordDistance(ctx context.Context, id int64, distance float64, at time.Time) error
	EnsureSpot(ctx context.Context, id int64) error
}

// SubscriptionStore persists browser push subscriptions and the spots they follow.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub model.PushSubscription, spotIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForSpot(ctx context.Context, spotID int64) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	SpotStore
	SubscriptionStore
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) GetSpot(ctx context.Context, id int64) (model.Spot, error) {
	var spot model.Spot
	err := s.db.WithContext(ctx).First(&spot, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Spot{}, ErrSpotNotFound
	}
	if err != nil {
		return model.Spot{}, fmt.Errorf("failed to load spot %d: %w", id, err)
	}
	return spot, nil
}

func (s *gormStore) ListSpots(ctx context.Context) ([]model.Spot, error) {
	var spots []model.Spot
	if err := s.db.WithContext(ctx).Order("id").Find(&spots).Error; err != nil {
		return nil, fmt.Errorf("failed to list spots: %w", err)
	}
	return spots, nil
}

func (s *gormStore) CompareAndSetOccupied(ctx context.Context, id int64, expected, next bool, at time.Time, distance *float64) (bool, error) {
	updates := map[string]any{
		"occupied":   next,
		"updated_at": at,
	}
	if distance != nil {
		updates["last_distance"] = *distance
		updates["distance_updated_at"] = at
	}

	res := s.db.WithContext(ctx).
		Model(&model.Spot{}).
		Where("id = ? AND occupied = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update occupancy of spot %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) SetOccupied(ctx context.Context, id int64, occupied bool, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Spot{}).
		Where("id = ?", id).
		Updates(map[string]any{"occupied": occupied, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to set occupancy of spot %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSpotNotFound
	}
	return nil
}

func (s *gormStore) RecordDistance(ctx context.Context, id int64, distance float64, at time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&model.Spot{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_distance": distance, "distance_updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to record distance of spot %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSpotNotFound
	}
	return nil
}

func (s *gormStore) EnsureSpot(ctx context.Context, id int64) error {
	spot := model.Spot{ID: id, Occupied: false, UpdatedAt: time.Now().UTC()}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&spot).Error; err != nil {
		return fmt.Errorf("failed to create spot %d: %w", id, err)
	}
	return nil
}

// EnsureSpots creates the rows 1..total that do not exist yet.
func EnsureSpots(ctx context.Context, s SpotStore, total int) error {
	for id := int64(1); id <= int64(total); id++ {
		if err := s.EnsureSpot(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
