package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Allotment Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Auth       AuthConfig       `yaml:"auth"`
	Irrigation IrrigationConfig `yaml:"irrigation"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains the optional time-series mirror settings.
// SQLite sensor_data remains the authoritative history; InfluxDB only
// receives a copy of accepted readings for dashboard-grade queries.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	// SessionTTLHours is how long a browser session stays valid. Default: 24.
	SessionTTLHours int `yaml:"session_ttl_hours"`

	// BcryptCost is the bcrypt work factor for password hashing.
	// Default: 10 (bcrypt.DefaultCost). Valid range: 4-31.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// IrrigationConfig contains the automation loop settings.
type IrrigationConfig struct {
	Enabled bool `yaml:"enabled"`

	// MoistureThreshold is the average soil moisture percentage below which
	// the pump is triggered. Default: 40.
	MoistureThreshold float64 `yaml:"moisture_threshold"`

	// PumpSeconds is how long the pump runs per trigger. Default: 5.
	PumpSeconds float64 `yaml:"pump_seconds"`

	// PollInterval is the seconds between polls of latest readings. Default: 60.
	PollInterval int `yaml:"poll_interval"`

	// SkipInterval is the minimum seconds between pump triggers for one
	// device while moisture stays low. Default: 120.
	SkipInterval int `yaml:"skip_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ALLOTMENT_SECTION_KEY
// For example: ALLOTMENT_DATABASE_PATH, ALLOTMENT_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultBcryptCost matches golang.org/x/crypto/bcrypt.DefaultCost.
const defaultBcryptCost = 10

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "data/allotment.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "allotment-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			SessionTTLHours: 24,
			BcryptCost:      defaultBcryptCost,
		},
		Irrigation: IrrigationConfig{
			Enabled:           false,
			MoistureThreshold: 40,
			PumpSeconds:       5,
			PollInterval:      60,
			SkipInterval:      120,
		},
	}
}

// applyEnvOverrides applies ALLOTMENT_* environment variables over file values.
// Only values that are sensitive or deployment-specific are overridable.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ALLOTMENT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ALLOTMENT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ALLOTMENT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ALLOTMENT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ALLOTMENT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// bcrypt cost bounds per golang.org/x/crypto/bcrypt.
const (
	minBcryptCost = 4
	maxBcryptCost = 31
	maxQoS        = 2
)

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > maxQoS {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.ClientID == "" {
		errs = append(errs, "mqtt.broker.client_id is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set ALLOTMENT_INFLUXDB_TOKEN)")
		}
	}

	if c.Auth.SessionTTLHours <= 0 {
		errs = append(errs, "auth.session_ttl_hours must be positive")
	}
	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > maxBcryptCost {
		errs = append(errs, "auth.bcrypt_cost must be between 4 and 31")
	}

	if c.Irrigation.Enabled {
		if c.Irrigation.PollInterval <= 0 {
			errs = append(errs, "irrigation.poll_interval must be positive")
		}
		if c.Irrigation.PumpSeconds <= 0 {
			errs = append(errs, "irrigation.pump_seconds must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SessionTTL returns the session lifetime as a Duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLHours) * time.Hour
}

// IrrigationPollInterval returns the irrigation poll interval as a Duration.
func (c *Config) IrrigationPollInterval() time.Duration {
	return time.Duration(c.Irrigation.PollInterval) * time.Second
}

// IrrigationSkipInterval returns the minimum time between pump triggers as a Duration.
func (c *Config) IrrigationSkipInterval() time.Duration {
	return time.Duration(c.Irrigation.SkipInterval) * time.Second
}
