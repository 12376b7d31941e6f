// Package config loads service configuration from an optional YAML file,
// an optional .env file and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Auth    AuthConfig    `yaml:"auth"`
	Admin   AdminConfig   `yaml:"admin"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Log     LogConfig     `yaml:"log"`
	Planner PlannerConfig `yaml:"planner"`
	Rules   []RuleConfig  `yaml:"rules"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       int           `yaml:"rate_limit"` // requests per minute per client, 0 disables
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string      `yaml:"driver"` // sqlite, mysql or mongo
	DSN      string      `yaml:"dsn"`
	MySQL    MySQLConfig `yaml:"mysql"`
	MongoURI string      `yaml:"mongo_uri"`
	MongoDB  string      `yaml:"mongo_db"`
}

// MySQLConfig builds a DSN when StoreConfig.DSN is empty.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// AuthConfig holds JWT settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// AdminConfig is the platform administrator seeded at startup.
type AdminConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// MQTTConfig enables event publishing when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// LogConfig configures logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// PlannerConfig is the maintenance planning policy.
type PlannerConfig struct {
	MileageBuffer    int64 `yaml:"mileage_buffer"`
	UpcomingLeadDays int   `yaml:"upcoming_lead_days"`
	SweepOverdue     *bool `yaml:"sweep_overdue"`
	StrictCreate     bool  `yaml:"strict_create"`
}

// RuleConfig is one catalog entry.
type RuleConfig struct {
	Name            string `yaml:"name"`
	Description     string `yaml:"description"`
	MileageInterval int64  `yaml:"mileage_interval"`
}

// DefaultPath is read by Load when no path is given.
const DefaultPath = "fleet.yaml"

// Load reads .env and the YAML file at path, then applies environment
// overrides. A missing file at the default path is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = nil
	}
	return parse(data, os.LookupEnv)
}

// Parse unmarshals YAML bytes into a validated Config without looking at the
// environment.
func Parse(data []byte) (*Config, error) {
	return parse(data, func(string) (string, bool) { return "", false })
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s must be an integer", key))
				return
			}
			*dst = n
		}
	}

	num("PORT", &c.Server.Port)
	num("RATE_LIMIT", &c.Server.RateLimit)
	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("MONGO_URI", &c.Store.MongoURI)
	str("MONGO_DB", &c.Store.MongoDB)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	if v, ok := lookup("JWT_EXPIRY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, "JWT_EXPIRY must be a duration")
		} else {
			c.Auth.JWTExpiry = d
		}
	}
	str("ADMIN_EMAIL", &c.Admin.Email)
	str("ADMIN_DEFAULT_PASSWORD", &c.Admin.Password)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_TOPIC_PREFIX", &c.MQTT.TopicPrefix)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("config: environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

// applyDefaults fills in default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		c.Store.DSN = "fleet.db?_foreign_keys=on&_busy_timeout=5000"
	}
	if c.Store.Driver == "mysql" {
		if c.Store.MySQL.Host == "" {
			c.Store.MySQL.Host = "127.0.0.1"
		}
		if c.Store.MySQL.Port == 0 {
			c.Store.MySQL.Port = 3306
		}
		if c.Store.MySQL.Database == "" {
			c.Store.MySQL.Database = "fleet"
		}
	}
	if c.Store.MongoDB == "" {
		c.Store.MongoDB = "fleet"
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = "default-secret-key-change-in-production"
	}
	if c.Auth.JWTExpiry == 0 {
		c.Auth.JWTExpiry = 24 * time.Hour
	}
	if c.Admin.Email == "" {
		c.Admin.Email = "admin@fleet.local"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "fleet-maintenance"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "fleet"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Planner.MileageBuffer == 0 {
		c.Planner.MileageBuffer = 1000
	}
	if c.Planner.UpcomingLeadDays == 0 {
		c.Planner.UpcomingLeadDays = 7
	}
	if c.Planner.SweepOverdue == nil {
		sweep := true
		c.Planner.SweepOverdue = &sweep
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "mysql":
	case "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, "store.mongo_uri is required for the mongo driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not one of sqlite, mysql, mongo", c.Store.Driver))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server.rate_limit must not be negative")
	}
	if c.Auth.JWTExpiry < 0 {
		errs = append(errs, "auth.jwt_expiry must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, "log.format must be text or json")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	if c.Planner.MileageBuffer < 0 {
		errs = append(errs, "planner.mileage_buffer must not be negative")
	}
	if c.Planner.UpcomingLeadDays < 0 {
		errs = append(errs, "planner.upcoming_lead_days must not be negative")
	}
	seen := make(map[string]bool, len(c.Rules))
	for i, r := range c.Rules {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("rules[%d].name is required", i))
		} else if seen[r.Name] {
			errs = append(errs, fmt.Sprintf("rules[%d].name %q is duplicated", i, r.Name))
		}
		seen[r.Name] = true
		if r.MileageInterval <= 0 {
			errs = append(errs, fmt.Sprintf("rules[%d].mileage_interval must be positive", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// StoreDSN returns the DSN for relational drivers.
func (c *Config) StoreDSN() string {
	if c.Store.DSN != "" || c.Store.Driver != "mysql" {
		return c.Store.DSN
	}
	m := c.Store.MySQL
	return db.MySQLDSN(m.User, m.Password, m.Host, m.Port, m.Database)
}

// PlannerPolicy converts the planner section for the maintenance package.
func (c *Config) PlannerPolicy() maintenance.Config {
	return maintenance.Config{
		MileageBuffer:    c.Planner.MileageBuffer,
		UpcomingLeadDays: c.Planner.UpcomingLeadDays,
		SweepOverdue:     c.Planner.SweepOverdue == nil || *c.Planner.SweepOverdue,
		StrictCreate:     c.Planner.StrictCreate,
	}
}

// Catalog returns the configured rules, or the default catalog when none
// are configured.
func (c *Config) Catalog() []models.MaintenanceRule {
	if len(c.Rules) == 0 {
		return models.DefaultRules()
	}
	rules := make([]models.MaintenanceRule, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = models.MaintenanceRule{Name: r.Name, Description: r.Description, MileageInterval: r.MileageInterval}
	}
	return rules
}

// ConfigureLogger applies the log section to logger.
func (c *Config) ConfigureLogger(logger *logrus.Logger) {
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
