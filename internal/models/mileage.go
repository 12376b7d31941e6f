package models

import (
	"time"

	"gorm.io/gorm"
)

// MileageRecord is one odometer reading of a car. Readings are append-only.
type MileageRecord struct {
	ID         string    `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	CarID      string    `json:"car_id" bson:"car_id" gorm:"size:36;not null;index:idx_mileage_car_recorded"`
	Value      int64     `json:"value" bson:"value" gorm:"not null"` // in kilometers
	RecordedAt time.Time `json:"recorded_at" bson:"recorded_at" gorm:"not null;index:idx_mileage_car_recorded"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (m *MileageRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

// RecordMileageRequest represents an odometer submission.
type RecordMileageRequest struct {
	Value      *int64    `json:"value" validate:"required,min=0"`
	RecordedAt time.Time `json:"recorded_at"`
}
