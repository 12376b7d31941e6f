package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *auth.Service
	users       db.UserStore
	validate    *validator.Validate
	log         logrus.FieldLogger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, users db.UserStore, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		validate:    validator.New(),
		log:         log,
	}
}

// Login exchanges an email and password for a signed token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(r, &loginReq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	loginReq.Email = strings.ToLower(strings.TrimSpace(loginReq.Email))
	if err := h.validate.Struct(loginReq); err != nil {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.FindUserByEmail(r.Context(), loginReq.Email)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.log.WithError(err).Error("Failed to load user")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, auth.ErrUserInactive.Error())
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		h.log.WithError(err).Error("Failed to generate token")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID); err != nil {
		h.log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}
