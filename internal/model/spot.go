package model

import "time"

// Spot is the durable occupancy record of one parking space.
// UpdatedAt is the observation time of the last accepted transition, so GORM
// must not overwrite it with the wall clock.
type Spot struct {
	ID                int64     `gorm:"primaryKey;autoIncrement:false"`
	Occupied          bool      `gorm:"not null;default:false"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime:false"`
	LastDistance      *float64
	DistanceUpdatedAt *time.Time
}
