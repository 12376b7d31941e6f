package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// FleetService is the planner surface used by the HTTP handlers.
type FleetService interface {
	Rules(ctx context.Context) ([]models.MaintenanceRule, error)
	Car(ctx context.Context, carID string) (*models.Car, error)
	Zone(ctx context.Context, id string) (*models.Zone, error)
	Maintenance(ctx context.Context, id string) (*models.MaintenanceRecord, error)
	CanAccessCar(ctx context.Context, user *models.User, car *models.Car) (bool, error)
	RegisterCar(ctx context.Context, ownerID *string, req models.RegisterCarRequest) (*models.Car, error)
	PlanDue(ctx context.Context, carID string) ([]models.MaintenanceRecord, error)
	RecordMileage(ctx context.Context, carID string, value int64, recordedAt time.Time) (*models.MileageRecord, error)
	History(ctx context.Context, carID string) ([]models.MaintenanceRecord, error)
	LogMaintenance(ctx context.Context, carID string, req models.LogMaintenanceRequest) (*models.MaintenanceRecord, error)
	CompleteMaintenance(ctx context.Context, maintenanceID string, c maintenance.Completion) (*models.MaintenanceRecord, error)
	Overview(ctx context.Context, scope db.CarFilter) (*models.PendingOverview, error)
}

var _ FleetService = (*maintenance.Planner)(nil)

// PlanResponse lists the maintenance created by a planning run.
type PlanResponse struct {
	Planned []models.MaintenanceRecord `json:"planned"`
}

// MileageResponse is returned after an odometer submission.
type MileageResponse struct {
	Mileage *models.MileageRecord      `json:"mileage"`
	Planned []models.MaintenanceRecord `json:"planned"`
}

// MaintenanceResponse is returned after a service is completed or logged.
type MaintenanceResponse struct {
	Maintenance *models.MaintenanceRecord  `json:"maintenance"`
	Planned     []models.MaintenanceRecord `json:"planned"`
}

// MaintenanceHandler serves cars and their maintenance.
type MaintenanceHandler struct {
	fleet    FleetService
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewMaintenanceHandler creates a maintenance handler.
func NewMaintenanceHandler(fleet FleetService, log logrus.FieldLogger) *MaintenanceHandler {
	return &MaintenanceHandler{fleet: fleet, validate: validator.New(), log: log}
}

func currentUser(r *http.Request) (*models.User, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return nil, false
	}
	return &models.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, true
}

// authorizedCar loads the car named by the path and checks the caller may act
// on it. It writes the error response itself and returns nil on failure.
func (h *MaintenanceHandler) authorizedCar(w http.ResponseWriter, r *http.Request, carID string) *models.Car {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user context not found")
		return nil
	}
	car, err := h.fleet.Car(r.Context(), carID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return nil
	}
	allowed, err := h.fleet.CanAccessCar(r.Context(), user, car)
	if err != nil {
		writeServiceError(w, h.log, err)
		return nil
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "access to car "+carID+" denied")
		return nil
	}
	return car
}

// replan runs PlanDue after a change to mileage or completed maintenance. The
// change is already committed, so a planning failure is logged, not returned.
func (h *MaintenanceHandler) replan(ctx context.Context, carID string) []models.MaintenanceRecord {
	planned, err := h.fleet.PlanDue(ctx, carID)
	if err != nil {
		h.log.WithError(err).WithField("car_id", carID).Error("Failed to plan maintenance")
		return []models.MaintenanceRecord{}
	}
	return planned
}

// Rules lists the rule catalog.
func (h *MaintenanceHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.fleet.Rules(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// RegisterCar registers a car. Owners register their own cars; fleet managers
// register cars into a zone they manage.
func (h *MaintenanceHandler) RegisterCar(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user context not found")
		return
	}
	var req models.RegisterCarRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var ownerID *string
	switch user.Role {
	case models.RoleOwner:
		ownerID = &user.ID
	case models.RoleChefPark:
		if req.ZoneID == nil {
			writeError(w, http.StatusBadRequest, "zone_id is required")
			return
		}
		zone, err := h.fleet.Zone(r.Context(), *req.ZoneID)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		if zone.ChefParkID != user.ID {
			writeError(w, http.StatusForbidden, "zone "+zone.ID+" is managed by another user")
			return
		}
	}

	car, err := h.fleet.RegisterCar(r.Context(), ownerID, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, car)
}

// PlanDue plans the maintenance that is due for a car.
func (h *MaintenanceHandler) PlanDue(w http.ResponseWriter, r *http.Request) {
	car := h.authorizedCar(w, r, r.PathValue("id"))
	if car == nil {
		return
	}
	planned, err := h.fleet.PlanDue(r.Context(), car.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanResponse{Planned: planned})
}

// RecordMileage stores an odometer reading and plans what became due.
func (h *MaintenanceHandler) RecordMileage(w http.ResponseWriter, r *http.Request) {
	car := h.authorizedCar(w, r, r.PathValue("id"))
	if car == nil {
		return
	}
	var req models.RecordMileageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "value is required and must not be negative")
		return
	}

	rec, err := h.fleet.RecordMileage(r.Context(), car.ID, *req.Value, req.RecordedAt)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, MileageResponse{Mileage: rec, Planned: h.replan(r.Context(), car.ID)})
}

// History lists a car's maintenance, newest first.
func (h *MaintenanceHandler) History(w http.ResponseWriter, r *http.Request) {
	car := h.authorizedCar(w, r, r.PathValue("id"))
	if car == nil {
		return
	}
	records, err := h.fleet.History(r.Context(), car.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// LogMaintenance records a service that was already performed.
func (h *MaintenanceHandler) LogMaintenance(w http.ResponseWriter, r *http.Request) {
	car := h.authorizedCar(w, r, r.PathValue("id"))
	if car == nil {
		return
	}
	var req models.LogMaintenanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec, err := h.fleet.LogMaintenance(r.Context(), car.ID, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, MaintenanceResponse{Maintenance: rec, Planned: h.replan(r.Context(), car.ID)})
}

// CompleteMaintenance closes a pending maintenance record.
func (h *MaintenanceHandler) CompleteMaintenance(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.fleet.Maintenance(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	if h.authorizedCar(w, r, rec.CarID) == nil {
		return
	}

	var req models.CompleteMaintenanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "date, recorded_mileage and cost are required and must not be negative")
		return
	}

	done, err := h.fleet.CompleteMaintenance(r.Context(), id, maintenance.Completion{
		Date:       req.Date,
		Mileage:    *req.Mileage,
		Cost:       *req.Cost,
		InvoiceURL: req.InvoiceURL,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MaintenanceResponse{Maintenance: done, Planned: h.replan(r.Context(), done.CarID)})
}

// Pending lists the upcoming and overdue maintenance of every car the caller
// can see.
func (h *MaintenanceHandler) Pending(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user context not found")
		return
	}
	scope, ok := maintenance.CarScope(user)
	if !ok {
		writeError(w, http.StatusForbidden, "role "+string(user.Role)+" cannot list maintenance")
		return
	}
	overview, err := h.fleet.Overview(r.Context(), scope)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
