package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MaintenanceType distinguishes planned service from ad-hoc repairs.
type MaintenanceType string

const (
	PreventiveMaintenance MaintenanceType = "PREVENTIVE_MAINTENANCE"
	CorrectiveMaintenance MaintenanceType = "CORRECTIVE_MAINTENANCE"
)

// MaintenanceStatus is the lifecycle state of a maintenance record.
type MaintenanceStatus string

const (
	StatusUpcoming MaintenanceStatus = "UPCOMING"
	StatusOverdue  MaintenanceStatus = "OVERDUE"
	StatusDone     MaintenanceStatus = "DONE"
)

// IsValidMaintenanceType checks if a maintenance type is known.
func IsValidMaintenanceType(t MaintenanceType) bool {
	return t == PreventiveMaintenance || t == CorrectiveMaintenance
}

// IsPending reports whether the status still expects a service visit.
func (s MaintenanceStatus) IsPending() bool {
	return s == StatusUpcoming || s == StatusOverdue
}

// MaintenanceRecord represents a vehicle maintenance record, either a planned
// preventive occurrence or a service that was already performed.
//
// Date is a visibility hint for planned records (now for overdue ones, a few
// days ahead for upcoming ones). The due point of a preventive occurrence is
// RecordedMileage, never Date.
type MaintenanceRecord struct {
	ID              string            `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	CarID           string            `json:"car_id" bson:"car_id" gorm:"size:36;not null;index"`
	RuleID          *string           `json:"rule_id,omitempty" bson:"rule_id,omitempty" gorm:"size:36;index"`
	Type            MaintenanceType   `json:"type" bson:"type" gorm:"size:32;not null"`
	Date            time.Time         `json:"date" bson:"date" gorm:"not null"`
	RecordedMileage int64             `json:"recorded_mileage" bson:"recorded_mileage" gorm:"not null"`
	Cost            float64           `json:"cost" bson:"cost"`
	Description     string            `json:"description" bson:"description" gorm:"size:255"`
	Status          MaintenanceStatus `json:"status" bson:"status" gorm:"size:16;not null;index"`
	InvoiceURL      string            `json:"invoice_url,omitempty" bson:"invoice_url,omitempty" gorm:"size:512"`
	PlanKey         *string           `json:"-" bson:"plan_key,omitempty" gorm:"size:160;uniqueIndex"`
	CreatedAt       time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`

	Car  *Car             `json:"car,omitempty" bson:"-" gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE"`
	Rule *MaintenanceRule `json:"-" bson:"-" gorm:"foreignKey:RuleID"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (m *MaintenanceRecord) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

// MatchesRule reports whether the record is an occurrence of rule. Records
// carrying a rule reference match on it; older records fall back to the
// description label.
func (m *MaintenanceRecord) MatchesRule(rule MaintenanceRule) bool {
	if m.RuleID != nil && *m.RuleID != "" {
		return *m.RuleID == rule.ID
	}
	return m.Description == rule.Name
}

// PlanKey builds the uniqueness key of a planned occurrence.
func PlanKey(carID, ruleID string, dueMileage int64) string {
	return fmt.Sprintf("%s:%s:%d", carID, ruleID, dueMileage)
}

// CompleteMaintenanceRequest closes a pending maintenance record.
type CompleteMaintenanceRequest struct {
	Date       time.Time `json:"date" validate:"required"`
	Mileage    *int64    `json:"recorded_mileage" validate:"required,min=0"`
	Cost       *float64  `json:"cost" validate:"required,min=0"`
	InvoiceURL string    `json:"invoice_url" validate:"omitempty,max=512"`
}

// LogMaintenanceRequest records a service that was already performed.
type LogMaintenanceRequest struct {
	Type        MaintenanceType `json:"type" validate:"required,oneof=PREVENTIVE_MAINTENANCE CORRECTIVE_MAINTENANCE"`
	RuleID      string          `json:"rule_id" validate:"omitempty,max=36"`
	Description string          `json:"description" validate:"max=255"`
	Date        time.Time       `json:"date" validate:"required"`
	Mileage     *int64          `json:"recorded_mileage" validate:"required,min=0"`
	Cost        *float64        `json:"cost" validate:"required,min=0"`
	InvoiceURL  string          `json:"invoice_url" validate:"omitempty,max=512"`
}

// PendingItem pairs a pending maintenance record with its car.
type PendingItem struct {
	Car         Car               `json:"car"`
	Maintenance MaintenanceRecord `json:"maintenance"`
}

// PendingOverview splits pending maintenance by status.
type PendingOverview struct {
	Upcoming []PendingItem `json:"upcoming"`
	Overdue  []PendingItem `json:"overdue"`
}
