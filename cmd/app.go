package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/events"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

const mqttTimeout = 5 * time.Second

// app is the wired service: configuration, store, planner and auth.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	auth    *auth.Service
	store   db.MaintenanceStore
	users   db.UserStore
	planner *maintenance.Planner
	closers []func()
}

// openApp loads configuration, opens and initializes the configured store and
// wires the planner. Store initialization (schema, rule catalog, admin) is
// idempotent and runs on every start.
func openApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(logOut)
	cfg.ConfigureLogger(logger)

	a := &app{
		cfg:  cfg,
		log:  logger,
		auth: auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry),
	}

	var adminHash string
	if cfg.Admin.Password != "" {
		if adminHash, err = a.auth.HashPassword(cfg.Admin.Password); err != nil {
			return nil, err
		}
	}

	if cfg.Store.Driver == "mongo" {
		err = a.openMongo(ctx, adminHash)
	} else {
		err = a.openRelational(ctx, adminHash)
	}
	if err != nil {
		a.Close()
		return nil, err
	}

	var publisher events.Publisher = &events.LogPublisher{Log: logger}
	if cfg.MQTT.Broker != "" {
		client, err := events.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID, mqttTimeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { client.Disconnect(250) })
		publisher = events.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, byte(cfg.MQTT.QoS), mqttTimeout)
		logger.WithField("broker", cfg.MQTT.Broker).Info("Publishing maintenance events to MQTT")
	}

	a.planner = maintenance.NewPlanner(a.store, maintenance.StoreCatalog{Store: a.store}, cfg.PlannerPolicy(),
		maintenance.WithPublisher(publisher),
		maintenance.WithLogger(logger))
	return a, nil
}

func (a *app) openRelational(ctx context.Context, adminHash string) error {
	gdb, err := db.Open(a.cfg.Store.Driver, a.cfg.StoreDSN())
	if err != nil {
		return err
	}
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, func() { sqlDB.Close() })
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}
	adminEmail := a.cfg.Admin.Email
	if adminHash == "" {
		adminEmail = ""
	}
	if err := db.Seed(ctx, gdb, a.cfg.Catalog(), adminEmail, adminHash); err != nil {
		return err
	}
	a.store = db.NewGormStore(gdb)
	a.users = &db.GormUserStore{DB: gdb}
	a.log.WithField("driver", a.cfg.Store.Driver).Info("Store ready")
	return nil
}

func (a *app) openMongo(ctx context.Context, adminHash string) error {
	client, err := db.ConnectMongo(ctx, a.cfg.Store.MongoURI)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { client.Disconnect(context.Background()) })

	store := db.NewMongoStore(client, a.cfg.Store.MongoDB)
	if err := store.EnsureIndexes(ctx); err != nil {
		return err
	}
	if _, err := store.SeedRules(ctx, a.cfg.Catalog()); err != nil {
		return err
	}
	users := store.Users()
	if adminHash != "" {
		_, err := users.FindUserByEmail(ctx, a.cfg.Admin.Email)
		if errors.Is(err, db.ErrNotFound) {
			err = users.InsertUser(ctx, &models.User{
				Email:        a.cfg.Admin.Email,
				PasswordHash: adminHash,
				Role:         models.RoleAdmin,
				FirstName:    "Admin",
			})
			if errors.Is(err, db.ErrDuplicate) {
				err = nil
			}
		}
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}
	a.store = store
	a.users = users
	a.log.WithField("database", a.cfg.Store.MongoDB).Info("Store ready")
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
