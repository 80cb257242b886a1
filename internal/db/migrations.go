package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"parking-status-backend/internal/model"
)

// migration is one forward-only schema step. Steps run in order, each in its
// own transaction, and are recorded in schema_migrations so they never run twice.
type migration struct {
	Version int
	Name    string
	Up      func(tx *gorm.DB) error
}

// spotV1 is the shape of the spots table before distance tracking existed.
type spotV1 struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false"`
	Occupied  bool      `gorm:"not null;default:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (spotV1) TableName() string { return "spots" }

var migrations = []migration{
	{
		Version: 1,
		Name:    "create spots",
		Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&spotV1{})
		},
	},
	{
		Version: 2,
		Name:    "add spot distance columns",
		Up: func(tx *gorm.DB) error {
			if err := tx.Migrator().AddColumn(&model.Spot{}, "LastDistance"); err != nil {
				return err
			}
			return tx.Migrator().AddColumn(&model.Spot{}, "DistanceUpdatedAt")
		},
	},
	{
		Version: 3,
		Name:    "create push subscriptions",
		Up: func(tx *gorm.DB) error {
			return tx.Migrator().CreateTable(&model.PushSubscription{})
		},
	},
}

// Migrate applies every migration newer than the recorded schema version and
// returns the ones it applied.
func Migrate(db *gorm.DB) ([]model.SchemaMigration, error) {
	if err := db.AutoMigrate(&model.SchemaMigration{}); err != nil {
		return nil, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.Model(&model.SchemaMigration{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&current).Error; err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}

	var applied []model.SchemaMigration
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		record := model.SchemaMigration{Version: m.Version, Name: m.Name, AppliedAt: time.Now().UTC()}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return tx.Create(&record).Error
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		applied = append(applied, record)
	}
	return applied, nil
}

// SchemaVersion returns the latest migration version known to this binary.
func SchemaVersion() int {
	return migrations[len(migrations)-1].Version
}
