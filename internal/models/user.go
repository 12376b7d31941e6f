package models

import (
	"time"

	"gorm.io/gorm"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleChefPark Role = "chef_park"
	RoleOwner    Role = "owner"
)

// User represents a user in the system
type User struct {
	ID           string     `bson:"_id" json:"id" gorm:"primaryKey;size:36"`
	Email        string     `bson:"email" json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string     `bson:"password_hash" json:"-" gorm:"size:255;not null"`
	Role         Role       `bson:"role" json:"role" gorm:"size:16;not null"`
	FirstName    string     `bson:"first_name" json:"first_name" gorm:"size:128"`
	LastName     string     `bson:"last_name" json:"last_name" gorm:"size:128"`
	IsActive     bool       `bson:"is_active" json:"is_active"`
	LastLogin    *time.Time `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// BeforeCreate assigns an identifier when the caller did not.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	return nil
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Exp    int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleChefPark, RoleOwner:
		return true
	default:
		return false
	}
}

// fleetActions are the actions the API checks. Which cars they reach is
// decided by the caller's scope, not here.
var fleetActions = map[string]bool{
	"register_car":         true,
	"record_mileage":       true,
	"plan_maintenance":     true,
	"log_maintenance":      true,
	"complete_maintenance": true,
	"view_maintenance":     true,
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleChefPark, RoleOwner:
		return fleetActions[action]
	default:
		return false
	}
}
