package db

import (
	"context"
	"errors"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row or document.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// MaintenanceFilter selects maintenance records of one car.
//
// Statuses and Types are OR-ed together when PendingOrPreventive is set, which
// is the set the planner deduplicates against: every pending record plus every
// preventive record whatever its status.
type MaintenanceFilter struct {
	CarID               string
	CarIDs              []string
	Statuses            []models.MaintenanceStatus
	Types               []models.MaintenanceType
	PendingOrPreventive bool
	OrderBy             MaintenanceOrder
	WithCar             bool
}

// MaintenanceOrder selects the sort of a maintenance listing.
type MaintenanceOrder int

const (
	OrderByDateDesc MaintenanceOrder = iota
	OrderByDateAsc
	OrderByMileageDesc
)

// CarFilter scopes a car listing. Empty fields do not filter.
type CarFilter struct {
	OwnerID    string
	ChefParkID string
}

// MaintenanceStore defines the persistence operations of the maintenance domain.
type MaintenanceStore interface {
	InsertCar(ctx context.Context, car *models.Car) error
	FindCar(ctx context.Context, id string) (*models.Car, error)
	ListCars(ctx context.Context, filter CarFilter) ([]models.Car, error)
	InsertZone(ctx context.Context, zone *models.Zone) error
	FindZone(ctx context.Context, id string) (*models.Zone, error)

	InsertMileage(ctx context.Context, mileage *models.MileageRecord) error
	// LatestMileage returns the most recent reading by recorded_at, or nil when
	// the car has none.
	LatestMileage(ctx context.Context, carID string) (*models.MileageRecord, error)
	// LatestMileageAt returns the most recent reading recorded at or before at,
	// or nil when there is none.
	LatestMileageAt(ctx context.Context, carID string, at time.Time) (*models.MileageRecord, error)

	// InsertMaintenance returns ErrDuplicate when a pending planned record with
	// the same plan key already exists.
	InsertMaintenance(ctx context.Context, record *models.MaintenanceRecord) error
	FindMaintenance(ctx context.Context, id string) (*models.MaintenanceRecord, error)
	ListMaintenance(ctx context.Context, filter MaintenanceFilter) ([]models.MaintenanceRecord, error)
	// MarkOverdue flips the car's UPCOMING records due at or below
	// currentMileage to OVERDUE and returns the flipped records.
	MarkOverdue(ctx context.Context, carID string, currentMileage int64) ([]models.MaintenanceRecord, error)
	// MarkDone closes a pending record with the values carried by record.
	// It returns ErrNotFound when no pending record with that ID exists.
	MarkDone(ctx context.Context, record *models.MaintenanceRecord) error

	InsertRule(ctx context.Context, rule *models.MaintenanceRule) error
	ListRules(ctx context.Context) ([]models.MaintenanceRule, error)
	FindRule(ctx context.Context, id string) (*models.MaintenanceRule, error)

	// WithTx runs fn inside a transaction. fn must use the store and context
	// it receives; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx MaintenanceStore) error) error
}
