package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// RegisterCar creates a car and its first mileage reading.
func (p *Planner) RegisterCar(ctx context.Context, ownerID *string, req models.RegisterCarRequest) (*models.Car, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	car := &models.Car{
		LicensePlate:   strings.ToUpper(strings.TrimSpace(req.LicensePlate)),
		Make:           req.Make,
		Model:          req.Model,
		Year:           req.Year,
		VIN:            req.VIN,
		InitialMileage: *req.InitialMileage,
		OwnerID:        ownerID,
		ZoneID:         req.ZoneID,
	}

	err := p.store.WithTx(ctx, func(ctx context.Context, tx db.MaintenanceStore) error {
		if car.ZoneID != nil {
			if _, err := tx.FindZone(ctx, *car.ZoneID); err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return invalid("zone %s does not exist", *car.ZoneID)
				}
				return err
			}
		}
		if err := tx.InsertCar(ctx, car); err != nil {
			if errors.Is(err, db.ErrDuplicate) {
				return fmt.Errorf("%w: license plate %s is already registered", ErrConflict, car.LicensePlate)
			}
			return err
		}
		return tx.InsertMileage(ctx, &models.MileageRecord{
			CarID:      car.ID,
			Value:      car.InitialMileage,
			RecordedAt: p.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{"car_id": car.ID, "license_plate": car.LicensePlate}).Info("Registered car")
	return car, nil
}

// LogMaintenance records a service that was already performed, together with
// the reading taken at that visit.
func (p *Planner) LogMaintenance(ctx context.Context, carID string, req models.LogMaintenanceRequest) (*models.MaintenanceRecord, error) {
	if err := p.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.Date.IsZero() {
		return nil, invalid("date is required")
	}
	date := req.Date.UTC()

	rec := &models.MaintenanceRecord{
		CarID:           carID,
		Type:            req.Type,
		Date:            date,
		RecordedMileage: *req.Mileage,
		Cost:            *req.Cost,
		Description:     strings.TrimSpace(req.Description),
		Status:          models.StatusDone,
		InvoiceURL:      req.InvoiceURL,
	}

	err := p.store.WithTx(ctx, func(ctx context.Context, tx db.MaintenanceStore) error {
		car, err := tx.FindCar(ctx, carID)
		if err != nil {
			return notFound("car", carID, err)
		}
		if req.RuleID != "" {
			rule, err := tx.FindRule(ctx, req.RuleID)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return invalid("rule %s does not exist", req.RuleID)
				}
				return err
			}
			rec.RuleID = &rule.ID
			if rec.Description == "" {
				rec.Description = rule.Name
			}
		}
		if rec.Description == "" {
			return invalid("a rule or a description is required")
		}

		prior, err := mileageAt(ctx, tx, car, date)
		if err != nil {
			return err
		}
		if rec.RecordedMileage < prior {
			return invalid("mileage %d is below the mileage %d recorded before that date", rec.RecordedMileage, prior)
		}
		if err := tx.InsertMileage(ctx, &models.MileageRecord{CarID: car.ID, Value: rec.RecordedMileage, RecordedAt: date}); err != nil {
			return err
		}
		return tx.InsertMaintenance(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"car_id":         rec.CarID,
		"maintenance_id": rec.ID,
		"type":           rec.Type,
	}).Info("Logged maintenance")
	p.publish(ctx, recordEvent(events.MaintenanceLogged, rec))
	return rec, nil
}

// History lists the maintenance of a car, most recent date first.
func (p *Planner) History(ctx context.Context, carID string) ([]models.MaintenanceRecord, error) {
	if _, err := p.store.FindCar(ctx, carID); err != nil {
		return nil, notFound("car", carID, err)
	}
	return p.store.ListMaintenance(ctx, db.MaintenanceFilter{CarID: carID, OrderBy: db.OrderByDateDesc})
}

// Overview splits the pending maintenance of the cars in scope into upcoming
// and overdue lists, earliest date first.
func (p *Planner) Overview(ctx context.Context, scope db.CarFilter) (*models.PendingOverview, error) {
	cars, err := p.store.ListCars(ctx, scope)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cars))
	for i := range cars {
		ids[i] = cars[i].ID
	}

	records, err := p.store.ListMaintenance(ctx, db.MaintenanceFilter{
		CarIDs:   ids,
		Statuses: []models.MaintenanceStatus{models.StatusUpcoming, models.StatusOverdue},
		OrderBy:  db.OrderByDateAsc,
		WithCar:  true,
	})
	if err != nil {
		return nil, err
	}

	overview := &models.PendingOverview{Upcoming: []models.PendingItem{}, Overdue: []models.PendingItem{}}
	for _, rec := range records {
		item := models.PendingItem{Maintenance: rec}
		if rec.Car != nil {
			item.Car = *rec.Car
		}
		item.Maintenance.Car = nil
		if rec.Status == models.StatusOverdue {
			overview.Overdue = append(overview.Overdue, item)
		} else {
			overview.Upcoming = append(overview.Upcoming, item)
		}
	}
	return overview, nil
}

// Rules returns the rule catalog.
func (p *Planner) Rules(ctx context.Context) ([]models.MaintenanceRule, error) {
	return p.catalog.Rules(ctx)
}

// CarScope resolves the cars a user may act on.
func CarScope(user *models.User) (db.CarFilter, bool) {
	switch user.Role {
	case models.RoleAdmin:
		return db.CarFilter{}, true
	case models.RoleChefPark:
		return db.CarFilter{ChefParkID: user.ID}, true
	case models.RoleOwner:
		return db.CarFilter{OwnerID: user.ID}, true
	default:
		return db.CarFilter{}, false
	}
}

// CanAccessCar reports whether user may act on car.
func (p *Planner) CanAccessCar(ctx context.Context, user *models.User, car *models.Car) (bool, error) {
	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleOwner:
		return car.OwnerID != nil && *car.OwnerID == user.ID, nil
	case models.RoleChefPark:
		if car.ZoneID == nil {
			return false, nil
		}
		zone, err := p.store.FindZone(ctx, *car.ZoneID)
		if errors.Is(err, db.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return zone.ChefParkID == user.ID, nil
	default:
		return false, nil
	}
}

// Car loads a car.
func (p *Planner) Car(ctx context.Context, carID string) (*models.Car, error) {
	car, err := p.store.FindCar(ctx, carID)
	if err != nil {
		return nil, notFound("car", carID, err)
	}
	return car, nil
}

// Maintenance loads a maintenance record.
func (p *Planner) Maintenance(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	rec, err := p.store.FindMaintenance(ctx, id)
	if err != nil {
		return nil, notFound("maintenance", id, err)
	}
	return rec, nil
}

// Zone loads a zone.
func (p *Planner) Zone(ctx context.Context, id string) (*models.Zone, error) {
	zone, err := p.store.FindZone(ctx, id)
	if err != nil {
		return nil, notFound("zone", id, err)
	}
	return zone, nil
}
