package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps planner errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without their detail.
func writeServiceError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, maintenance.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, maintenance.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, maintenance.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
