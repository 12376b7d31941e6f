package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels lists every table managed by AutoMigrate, parents first.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Zone{},
		&models.Car{},
		&models.MileageRecord{},
		&models.MaintenanceRule{},
		&models.MaintenanceRecord{},
	}
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}

// SeedRules inserts the catalog rules missing by name. Existing rules are left
// as they are, so the call is idempotent.
func SeedRules(ctx context.Context, gdb *gorm.DB, rules []models.MaintenanceRule) (int64, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	seed := make([]models.MaintenanceRule, len(rules))
	copy(seed, rules)

	result := gdb.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&seed)
	if result.Error != nil {
		return 0, fmt.Errorf("db: seed rules: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// EnsureAdmin creates the administrator account when no user has that email.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, gdb *gorm.DB, email, passwordHash string) (bool, error) {
	var existing models.User
	err := gdb.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("db: find admin: %w", err)
	}

	admin := models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
		FirstName:    "Admin",
		IsActive:     true,
	}
	if err := gdb.WithContext(ctx).Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, fmt.Errorf("db: create admin: %w", err)
	}
	return true, nil
}

// Seed runs every seeding step in one transaction.
func Seed(ctx context.Context, gdb *gorm.DB, rules []models.MaintenanceRule, adminEmail, adminPasswordHash string) error {
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := SeedRules(ctx, tx, rules); err != nil {
			return err
		}
		if adminEmail == "" {
			return nil
		}
		_, err := EnsureAdmin(ctx, tx, adminEmail, adminPasswordHash)
		return err
	})
}

// OpenTestDB opens a migrated sqlite database under dir. The file lives as
// long as dir does. Connections are limited to one so that concurrent
// transactions queue instead of failing with SQLITE_BUSY.
func OpenTestDB(dir string) (*gorm.DB, error) {
	gdb, err := Open("sqlite", fmt.Sprintf("%s/fleet-%d.db?_foreign_keys=on&_busy_timeout=5000", dir, time.Now().UnixNano()))
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
