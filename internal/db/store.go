package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"gorm.io/gorm"
)

// GormStore implements MaintenanceStore on a relational database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open GORM connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ MaintenanceStore = (*GormStore)(nil)

// DB exposes the underlying connection for migrations and seeding.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// translate maps GORM errors onto the store's sentinel errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// InsertCar inserts a car.
func (s *GormStore) InsertCar(ctx context.Context, car *models.Car) error {
	return translate(s.db.WithContext(ctx).Omit("Zone").Create(car).Error)
}

// FindCar finds a car by its ID.
func (s *GormStore) FindCar(ctx context.Context, id string) (*models.Car, error) {
	var car models.Car
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&car).Error; err != nil {
		return nil, translate(err)
	}
	return &car, nil
}

// ListCars lists cars visible under filter, ordered by license plate.
func (s *GormStore) ListCars(ctx context.Context, filter CarFilter) ([]models.Car, error) {
	q := s.db.WithContext(ctx).Model(&models.Car{})
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.ChefParkID != "" {
		q = q.Where("zone_id IN (?)", s.db.Model(&models.Zone{}).Select("id").Where("chef_park_id = ?", filter.ChefParkID))
	}

	var cars []models.Car
	if err := q.Order("license_plate ASC").Find(&cars).Error; err != nil {
		return nil, translate(err)
	}
	return cars, nil
}

// InsertZone inserts a zone.
func (s *GormStore) InsertZone(ctx context.Context, zone *models.Zone) error {
	return translate(s.db.WithContext(ctx).Create(zone).Error)
}

// FindZone finds a zone by its ID.
func (s *GormStore) FindZone(ctx context.Context, id string) (*models.Zone, error) {
	var zone models.Zone
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&zone).Error; err != nil {
		return nil, translate(err)
	}
	return &zone, nil
}

// InsertMileage inserts an odometer reading.
func (s *GormStore) InsertMileage(ctx context.Context, mileage *models.MileageRecord) error {
	return translate(s.db.WithContext(ctx).Create(mileage).Error)
}

// LatestMileage returns the car's most recent reading, or nil.
func (s *GormStore) LatestMileage(ctx context.Context, carID string) (*models.MileageRecord, error) {
	return s.latestMileage(s.db.WithContext(ctx).Where("car_id = ?", carID))
}

// LatestMileageAt returns the car's most recent reading at or before at, or nil.
func (s *GormStore) LatestMileageAt(ctx context.Context, carID string, at time.Time) (*models.MileageRecord, error) {
	return s.latestMileage(s.db.WithContext(ctx).Where("car_id = ? AND recorded_at <= ?", carID, at))
}

func (s *GormStore) latestMileage(q *gorm.DB) (*models.MileageRecord, error) {
	var m models.MileageRecord
	err := q.Order("recorded_at DESC").Order("created_at DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMaintenance inserts a maintenance record.
func (s *GormStore) InsertMaintenance(ctx context.Context, record *models.MaintenanceRecord) error {
	return translate(s.db.WithContext(ctx).Omit("Car", "Rule").Create(record).Error)
}

// FindMaintenance finds a maintenance record by its ID.
func (s *GormStore) FindMaintenance(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	var record models.MaintenanceRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

// ListMaintenance queries maintenance records.
func (s *GormStore) ListMaintenance(ctx context.Context, filter MaintenanceFilter) ([]models.MaintenanceRecord, error) {
	if filter.CarIDs != nil && len(filter.CarIDs) == 0 {
		return []models.MaintenanceRecord{}, nil
	}

	q := s.db.WithContext(ctx).Model(&models.MaintenanceRecord{})
	if filter.CarID != "" {
		q = q.Where("car_id = ?", filter.CarID)
	}
	if len(filter.CarIDs) > 0 {
		q = q.Where("car_id IN ?", filter.CarIDs)
	}

	if filter.PendingOrPreventive {
		q = q.Where("(status IN ? OR type = ?)",
			[]models.MaintenanceStatus{models.StatusUpcoming, models.StatusOverdue},
			models.PreventiveMaintenance)
	} else {
		if len(filter.Statuses) > 0 {
			q = q.Where("status IN ?", filter.Statuses)
		}
		if len(filter.Types) > 0 {
			q = q.Where("type IN ?", filter.Types)
		}
	}

	switch filter.OrderBy {
	case OrderByDateAsc:
		q = q.Order("date ASC")
	case OrderByMileageDesc:
		q = q.Order("recorded_mileage DESC")
	default:
		q = q.Order("date DESC")
	}
	q = q.Order("id ASC")

	if filter.WithCar {
		q = q.Preload("Car")
	}

	var records []models.MaintenanceRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, translate(err)
	}
	return records, nil
}

// MarkOverdue flips due UPCOMING records of a car to OVERDUE.
func (s *GormStore) MarkOverdue(ctx context.Context, carID string, currentMileage int64) ([]models.MaintenanceRecord, error) {
	var due []models.MaintenanceRecord
	err := s.db.WithContext(ctx).
		Where("car_id = ? AND status = ? AND recorded_mileage <= ?", carID, models.StatusUpcoming, currentMileage).
		Order("recorded_mileage ASC").
		Find(&due).Error
	if err != nil {
		return nil, translate(err)
	}
	if len(due) == 0 {
		return nil, nil
	}

	ids := make([]string, len(due))
	for i := range due {
		ids[i] = due[i].ID
	}
	err = s.db.WithContext(ctx).Model(&models.MaintenanceRecord{}).
		Where("id IN ? AND status = ?", ids, models.StatusUpcoming).
		Update("status", models.StatusOverdue).Error
	if err != nil {
		return nil, translate(err)
	}

	for i := range due {
		due[i].Status = models.StatusOverdue
	}
	return due, nil
}

// MarkDone closes a pending maintenance record.
func (s *GormStore) MarkDone(ctx context.Context, record *models.MaintenanceRecord) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.MaintenanceRecord{}).
		Where("id = ? AND status <> ?", record.ID, models.StatusDone).
		Updates(map[string]interface{}{
			"date":             record.Date,
			"recorded_mileage": record.RecordedMileage,
			"cost":             record.Cost,
			"invoice_url":      record.InvoiceURL,
			"status":           models.StatusDone,
			"plan_key":         nil,
			"updated_at":       now,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	record.Status = models.StatusDone
	record.PlanKey = nil
	record.UpdatedAt = now
	return nil
}

// InsertRule inserts a maintenance rule.
func (s *GormStore) InsertRule(ctx context.Context, rule *models.MaintenanceRule) error {
	return translate(s.db.WithContext(ctx).Create(rule).Error)
}

// ListRules returns the rule catalog ordered by interval then name.
func (s *GormStore) ListRules(ctx context.Context) ([]models.MaintenanceRule, error) {
	var rules []models.MaintenanceRule
	if err := s.db.WithContext(ctx).Order("mileage_interval ASC, name ASC").Find(&rules).Error; err != nil {
		return nil, translate(err)
	}
	return rules, nil
}

// FindRule finds a maintenance rule by its ID.
func (s *GormStore) FindRule(ctx context.Context, id string) (*models.MaintenanceRule, error) {
	var rule models.MaintenanceRule
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rule).Error; err != nil {
		return nil, translate(err)
	}
	return &rule, nil
}

// WithTx runs fn in a database transaction.
func (s *GormStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx MaintenanceStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &GormStore{db: tx})
	})
}
