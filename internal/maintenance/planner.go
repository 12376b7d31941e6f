// Package maintenance plans preventive maintenance from mileage intervals and
// drives the state transitions of maintenance records.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/zoobzio/clockz"
)

// Config holds the planning policy.
type Config struct {
	// MileageBuffer is how far ahead of the current mileage a due point is
	// planned as UPCOMING.
	MileageBuffer int64
	// UpcomingLeadDays sets the date hint of UPCOMING records.
	UpcomingLeadDays int
	// SweepOverdue flips existing UPCOMING records to OVERDUE once the car's
	// mileage reaches them.
	SweepOverdue bool
	// StrictCreate reports a plan-key conflict as ErrConflict instead of
	// treating it as already planned. The conflict can surface after other
	// records of the same run were created; those are not rolled back.
	StrictCreate bool
}

// DefaultConfig returns the default planning policy.
func DefaultConfig() Config {
	return Config{
		MileageBuffer:    1000,
		UpcomingLeadDays: 7,
		SweepOverdue:     true,
	}
}

// Planner computes and records preventive maintenance.
type Planner struct {
	store    db.MaintenanceStore
	catalog  Catalog
	cfg      Config
	events   events.Publisher
	clock    clockz.Clock
	log      logrus.FieldLogger
	validate *validator.Validate
}

// Option configures a Planner.
type Option func(*Planner)

// WithClock replaces the wall clock.
func WithClock(clock clockz.Clock) Option {
	return func(p *Planner) { p.clock = clock }
}

// WithPublisher sets where state transitions are published.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Planner) { p.events = pub }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(p *Planner) { p.log = log }
}

// NewPlanner creates a planner over store using the rules of catalog.
func NewPlanner(store db.MaintenanceStore, catalog Catalog, cfg Config, opts ...Option) *Planner {
	p := &Planner{
		store:    store,
		catalog:  catalog,
		cfg:      cfg,
		events:   events.Nop{},
		clock:    clockz.RealClock,
		log:      logrus.StandardLogger(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Planner) now() time.Time {
	return p.clock.Now().UTC()
}

func (p *Planner) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = p.now()
	if err := p.events.Publish(ctx, event); err != nil {
		p.log.WithFields(logrus.Fields{
			"event":  event.Type,
			"car_id": event.CarID,
			"error":  err,
		}).Warn("Failed to publish maintenance event")
	}
}

func recordEvent(t events.Type, rec *models.MaintenanceRecord) events.Event {
	return events.Event{
		Type:            t,
		CarID:           rec.CarID,
		MaintenanceID:   rec.ID,
		Description:     rec.Description,
		RecordedMileage: rec.RecordedMileage,
		Status:          string(rec.Status),
	}
}

// currentMileage is the latest reading of car, or its initial mileage.
func currentMileage(ctx context.Context, store db.MaintenanceStore, car *models.Car) (int64, error) {
	latest, err := store.LatestMileage(ctx, car.ID)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return car.InitialMileage, nil
	}
	return latest.Value, nil
}

// mileageAt is the reading of car at or before at, or its initial mileage.
func mileageAt(ctx context.Context, store db.MaintenanceStore, car *models.Car, at time.Time) (int64, error) {
	prior, err := store.LatestMileageAt(ctx, car.ID, at)
	if err != nil {
		return 0, err
	}
	if prior == nil {
		return car.InitialMileage, nil
	}
	return prior.Value, nil
}

// PlanDue creates the preventive maintenance records that are due for carID
// and do not exist yet, and returns them. Calling it again without new
// mileage or completed maintenance creates nothing. Each record is stored and
// published on its own, so a failing run keeps what it created before the
// error.
func (p *Planner) PlanDue(ctx context.Context, carID string) ([]models.MaintenanceRecord, error) {
	car, err := p.store.FindCar(ctx, carID)
	if err != nil {
		return nil, notFound("car", carID, err)
	}
	current, err := currentMileage(ctx, p.store, car)
	if err != nil {
		return nil, fmt.Errorf("load current mileage: %w", err)
	}
	logger := p.log.WithFields(logrus.Fields{"car_id": car.ID, "current_mileage": current})

	if p.cfg.SweepOverdue {
		flipped, err := p.store.MarkOverdue(ctx, car.ID, current)
		if err != nil {
			return nil, fmt.Errorf("sweep overdue: %w", err)
		}
		for i := range flipped {
			logger.WithFields(logrus.Fields{
				"maintenance_id": flipped[i].ID,
				"due_mileage":    flipped[i].RecordedMileage,
			}).Info("Maintenance is now overdue")
			p.publish(ctx, recordEvent(events.MaintenanceOverdue, &flipped[i]))
		}
	}

	existing, err := p.store.ListMaintenance(ctx, db.MaintenanceFilter{CarID: car.ID, PendingOrPreventive: true})
	if err != nil {
		return nil, fmt.Errorf("load maintenance: %w", err)
	}
	done, err := p.store.ListMaintenance(ctx, db.MaintenanceFilter{
		CarID:    car.ID,
		Statuses: []models.MaintenanceStatus{models.StatusDone},
		Types:    []models.MaintenanceType{models.PreventiveMaintenance},
		OrderBy:  db.OrderByMileageDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("load completed maintenance: %w", err)
	}
	rules, err := p.catalog.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	now := p.now()
	created := []models.MaintenanceRecord{}
	for _, rule := range rules {
		if rule.MileageInterval <= 0 {
			logger.WithField("rule", rule.Name).Warn("Skipping rule without a positive mileage interval")
			continue
		}
		lastDone := lastDoneMileage(done, rule, car.InitialMileage)
		for _, point := range ComputeDue(lastDone, rule.MileageInterval, current, p.cfg.MileageBuffer) {
			if hasInstance(existing, rule, point.Mileage) {
				continue
			}
			rec := p.plannedRecord(car.ID, rule, point, now)
			if err := p.store.InsertMaintenance(ctx, rec); err != nil {
				if !errors.Is(err, db.ErrDuplicate) {
					return nil, fmt.Errorf("create %s at %d: %w", rule.Name, point.Mileage, err)
				}
				if p.cfg.StrictCreate {
					return nil, fmt.Errorf("%w: %s is already planned at %d", ErrConflict, rule.Name, point.Mileage)
				}
				logger.WithFields(logrus.Fields{"rule": rule.Name, "due_mileage": point.Mileage}).
					Debug("Maintenance already planned concurrently")
				continue
			}
			logger.WithFields(logrus.Fields{
				"rule":        rule.Name,
				"due_mileage": point.Mileage,
				"status":      rec.Status,
			}).Debug("Planned maintenance")
			p.publish(ctx, recordEvent(events.MaintenancePlanned, rec))
			existing = append(existing, *rec)
			created = append(created, *rec)
		}
	}
	return created, nil
}

func (p *Planner) plannedRecord(carID string, rule models.MaintenanceRule, point DuePoint, now time.Time) *models.MaintenanceRecord {
	date := now
	if point.Status == models.StatusUpcoming {
		date = now.AddDate(0, 0, p.cfg.UpcomingLeadDays)
	}
	ruleID := rule.ID
	key := models.PlanKey(carID, rule.ID, point.Mileage)
	return &models.MaintenanceRecord{
		CarID:           carID,
		RuleID:          &ruleID,
		Type:            models.PreventiveMaintenance,
		Date:            date,
		RecordedMileage: point.Mileage,
		Cost:            0,
		Description:     rule.Name,
		Status:          point.Status,
		PlanKey:         &key,
	}
}

// RecordMileage stores an odometer reading. The value must not be below the
// car's latest reading. A zero recordedAt means now. Callers should run
// PlanDue afterwards.
func (p *Planner) RecordMileage(ctx context.Context, carID string, value int64, recordedAt time.Time) (*models.MileageRecord, error) {
	if value < 0 {
		return nil, invalid("mileage must not be negative")
	}
	if recordedAt.IsZero() {
		recordedAt = p.now()
	}
	rec := &models.MileageRecord{CarID: carID, Value: value, RecordedAt: recordedAt.UTC()}

	err := p.store.WithTx(ctx, func(ctx context.Context, tx db.MaintenanceStore) error {
		car, err := tx.FindCar(ctx, carID)
		if err != nil {
			return notFound("car", carID, err)
		}
		current, err := currentMileage(ctx, tx, car)
		if err != nil {
			return err
		}
		if value < current {
			return invalid("mileage %d is below the latest recorded mileage %d", value, current)
		}
		return tx.InsertMileage(ctx, rec)
	})
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{"car_id": carID, "mileage": value}).Info("Recorded mileage")
	p.publish(ctx, events.Event{Type: events.MileageRecorded, CarID: carID, RecordedMileage: value})
	return rec, nil
}

// Completion carries the actual values of a finished service.
type Completion struct {
	Date       time.Time
	Mileage    int64
	Cost       float64
	InvoiceURL string
}

// CompleteMaintenance closes a pending record and stores the service mileage
// as a reading, both in one transaction. Completing a done record is
// ErrConflict. Callers should run PlanDue afterwards.
func (p *Planner) CompleteMaintenance(ctx context.Context, maintenanceID string, c Completion) (*models.MaintenanceRecord, error) {
	switch {
	case c.Date.IsZero():
		return nil, invalid("completion date is required")
	case c.Mileage < 0:
		return nil, invalid("mileage must not be negative")
	case c.Cost < 0:
		return nil, invalid("cost must not be negative")
	}
	date := c.Date.UTC()

	var rec *models.MaintenanceRecord
	err := p.store.WithTx(ctx, func(ctx context.Context, tx db.MaintenanceStore) error {
		found, err := tx.FindMaintenance(ctx, maintenanceID)
		if err != nil {
			return notFound("maintenance", maintenanceID, err)
		}
		if found.Status == models.StatusDone {
			return fmt.Errorf("%w: maintenance %s is already completed", ErrConflict, maintenanceID)
		}
		car, err := tx.FindCar(ctx, found.CarID)
		if err != nil {
			return notFound("car", found.CarID, err)
		}
		prior, err := mileageAt(ctx, tx, car, date)
		if err != nil {
			return err
		}
		if c.Mileage < prior {
			return invalid("mileage %d is below the mileage %d recorded before %s", c.Mileage, prior, date.Format(time.RFC3339))
		}

		if err := tx.InsertMileage(ctx, &models.MileageRecord{CarID: car.ID, Value: c.Mileage, RecordedAt: date}); err != nil {
			return fmt.Errorf("record service mileage: %w", err)
		}

		found.Date = date
		found.RecordedMileage = c.Mileage
		found.Cost = c.Cost
		found.InvoiceURL = c.InvoiceURL
		if err := tx.MarkDone(ctx, found); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("%w: maintenance %s is already completed", ErrConflict, maintenanceID)
			}
			return err
		}
		rec = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"car_id":         rec.CarID,
		"maintenance_id": rec.ID,
		"mileage":        rec.RecordedMileage,
	}).Info("Completed maintenance")
	p.publish(ctx, recordEvent(events.MaintenanceCompleted, rec))
	return rec, nil
}
