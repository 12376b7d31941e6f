package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}

// Car represents a fleet vehicle. A car belongs either to an individual owner
// or to a zone run by a fleet manager.
type Car struct {
	ID             string    `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	LicensePlate   string    `json:"license_plate" bson:"license_plate" gorm:"size:32;not null;uniqueIndex"`
	Make           string    `json:"make" bson:"make" gorm:"size:64"`
	Model          string    `json:"model" bson:"model" gorm:"size:64"`
	Year           int       `json:"year" bson:"year"`
	VIN            string    `json:"vin,omitempty" bson:"vin,omitempty" gorm:"size:32"`
	InitialMileage int64     `json:"initial_mileage" bson:"initial_mileage" gorm:"not null;default:0"` // in kilometers
	OwnerID        *string   `json:"owner_id,omitempty" bson:"owner_id,omitempty" gorm:"size:36;index"`
	ZoneID         *string   `json:"zone_id,omitempty" bson:"zone_id,omitempty" gorm:"size:36;index"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`

	Zone *Zone `json:"zone,omitempty" bson:"-" gorm:"foreignKey:ZoneID"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = NewID()
	}
	return nil
}

// Zone groups cars managed by one fleet manager.
type Zone struct {
	ID         string    `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	Name       string    `json:"name" bson:"name" gorm:"size:128;not null"`
	ChefParkID string    `json:"chef_park_id" bson:"chef_park_id" gorm:"size:36;not null;index"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (z *Zone) BeforeCreate(tx *gorm.DB) error {
	if z.ID == "" {
		z.ID = NewID()
	}
	return nil
}

// RegisterCarRequest represents a car registration request.
type RegisterCarRequest struct {
	LicensePlate   string  `json:"license_plate" validate:"required,max=32"`
	Make           string  `json:"make" validate:"max=64"`
	Model          string  `json:"model" validate:"max=64"`
	Year           int     `json:"year" validate:"omitempty,min=1900,max=2100"`
	VIN            string  `json:"vin" validate:"max=32"`
	InitialMileage *int64  `json:"initial_mileage" validate:"required,min=0"`
	ZoneID         *string `json:"zone_id" validate:"omitempty,max=36"`
}
