package server

import (
	"net/http"

	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
)

// registerRoutes sets up all API routes on mux. Authentication wraps the
// whole mux; each route here only adds its permission check.
func registerRoutes(mux *http.ServeMux, authMW *middleware.AuthMiddleware, authH *handlers.AuthHandler, h *handlers.MaintenanceHandler) {
	allow := func(action string, fn http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(action)(fn)
	}

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("POST /api/auth/login", authH.Login)

	mux.Handle("GET /api/rules", allow("view_maintenance", h.Rules))
	mux.Handle("POST /api/cars", allow("register_car", h.RegisterCar))
	mux.Handle("POST /api/cars/{id}/plan", allow("plan_maintenance", h.PlanDue))
	mux.Handle("POST /api/cars/{id}/mileage", allow("record_mileage", h.RecordMileage))
	mux.Handle("GET /api/cars/{id}/maintenance", allow("view_maintenance", h.History))
	mux.Handle("POST /api/cars/{id}/maintenance", allow("log_maintenance", h.LogMaintenance))
	mux.Handle("POST /api/maintenance/{id}/complete", allow("complete_maintenance", h.CompleteMaintenance))
	mux.Handle("GET /api/maintenance/pending", allow("view_maintenance", h.Pending))
}
