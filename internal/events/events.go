// Package events publishes maintenance state transitions so that other
// services (notifiers, dashboards) can react to them.
package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Type names a state transition.
type Type string

const (
	MaintenancePlanned   Type = "maintenance.planned"
	MaintenanceOverdue   Type = "maintenance.overdue"
	MaintenanceCompleted Type = "maintenance.completed"
	MaintenanceLogged    Type = "maintenance.logged"
	MileageRecorded      Type = "mileage.recorded"
)

// Event is one observable state transition.
type Event struct {
	Type            Type      `json:"type"`
	CarID           string    `json:"car_id"`
	MaintenanceID   string    `json:"maintenance_id,omitempty"`
	Description     string    `json:"description,omitempty"`
	RecordedMileage int64     `json:"recorded_mileage"`
	Status          string    `json:"status,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to a logger. It is used when no broker is
// configured.
type LogPublisher struct {
	Log logrus.FieldLogger
}

// Publish logs the event at info level.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	p.Log.WithFields(logrus.Fields{
		"event":            event.Type,
		"car_id":           event.CarID,
		"maintenance_id":   event.MaintenanceID,
		"description":      event.Description,
		"recorded_mileage": event.RecordedMileage,
		"status":           event.Status,
	}).Info("Maintenance event")
	return nil
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }
