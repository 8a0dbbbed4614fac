package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig             `yaml:"server"`
	API          APIConfig                `yaml:"api"`
	Database     DatabaseConfig           `yaml:"database"`
	NATS         NATSConfig               `yaml:"nats"`
	MQTT         MQTTConfig               `yaml:"mqtt"`
	JWT          JWTConfig                `yaml:"jwt"`
	Log          LogConfig                `yaml:"log"`
	Schedule     ScheduleConfig           `yaml:"schedule"`
	Monitor      MonitorConfig            `yaml:"monitor"`
	Webhook      WebhookConfig            `yaml:"webhook"`
	DeviceStates []devicestate.Definition `yaml:"device_states"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// APIConfig represents API configuration
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres | sqlite
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL               string        `yaml:"url"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxReconnects     int           `yaml:"max_reconnects"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	SubjectPrefix     string        `yaml:"subject_prefix"`
}

// MQTTConfig represents the MQTT broker state changes are published to
type MQTTConfig struct {
	Broker       string `yaml:"broker"`
	ClientID     string `yaml:"client_id"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	TopicPattern string `yaml:"topic_pattern"`
	QoS          byte   `yaml:"qos"`
	Retain       bool   `yaml:"retain"`
}

// JWTConfig represents JWT configuration
type JWTConfig struct {
	Secret          string        `yaml:"secret"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	DeviceTokenTTL  time.Duration `yaml:"device_token_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig holds the schedule defaults applied to every device
type ScheduleConfig struct {
	DefaultState    devicestate.Value `yaml:"default_state"`
	DefaultTimezone string            `yaml:"default_timezone"`
}

// MonitorConfig controls the periodic state-change monitor
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"`
}

// WebhookConfig represents the state-change webhook
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load loads configuration from a YAML file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, applies environment overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply environment overrides
	cfg.applyEnvOverrides()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		c.NATS.URL = natsURL
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		c.MQTT.Broker = broker
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Log.Level = logLevel
	}

	if webhookURL := os.Getenv("WEBHOOK_URL"); webhookURL != "" {
		c.Webhook.URL = webhookURL
	}
}

func (c *Config) setDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = "devicestate-server"
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.JWT.AccessTokenTTL == 0 {
		c.JWT.AccessTokenTTL = 15 * time.Minute
	}
	if c.JWT.RefreshTokenTTL == 0 {
		c.JWT.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.JWT.DeviceTokenTTL == 0 {
		c.JWT.DeviceTokenTTL = 30 * 24 * time.Hour
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "device"
	}
	if c.NATS.ReconnectInterval == 0 {
		c.NATS.ReconnectInterval = 2 * time.Second
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = c.Server.Name
	}
	if c.MQTT.TopicPattern == "" {
		c.MQTT.TopicPattern = "devices/{device_id}/state"
	}
	if c.Schedule.DefaultState.DeviceState == "" {
		c.Schedule.DefaultState = devicestate.Default
	}
	if c.Schedule.DefaultTimezone == "" {
		c.Schedule.DefaultTimezone = "UTC"
	}
	if c.Monitor.Spec == "" {
		c.Monitor.Spec = "@every 1m"
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
	if len(c.DeviceStates) == 0 {
		c.DeviceStates = append([]devicestate.Definition(nil), devicestate.DefaultDefinitions...)
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}

	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	catalogue, err := c.Catalogue()
	if err != nil {
		return err
	}

	// app groups belong to single users, so the global default cannot name one
	def, ok := catalogue.Lookup(c.Schedule.DefaultState.DeviceState)
	if !ok {
		return fmt.Errorf("default state %q is not a configured device state", c.Schedule.DefaultState.DeviceState)
	}
	if def.TakesAppGroup() {
		return fmt.Errorf("default state %q takes an app group and cannot be the default", def.DeviceState)
	}
	if err := catalogue.Accepts(c.Schedule.DefaultState, nil); err != nil {
		return fmt.Errorf("default state: %w", err)
	}

	return nil
}

// Location returns the time zone for devices without one of their own
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.DefaultTimezone)
	if err != nil {
		return nil, fmt.Errorf("default timezone %q: %w", c.Schedule.DefaultTimezone, err)
	}
	return loc, nil
}

// Catalogue builds the device-state catalogue
func (c *Config) Catalogue() (*devicestate.Catalogue, error) {
	catalogue, err := devicestate.NewCatalogue(c.DeviceStates)
	if err != nil {
		return nil, fmt.Errorf("device states: %w", err)
	}
	return catalogue, nil
}

// PrintConfigSummary logs the effective configuration
func (c *Config) PrintConfigSummary() {
	log.Info().
		Str("name", c.Server.Name).
		Str("db_driver", c.Database.Driver).
		Str("default_state", c.Schedule.DefaultState.String()).
		Str("default_timezone", c.Schedule.DefaultTimezone).
		Int("device_states", len(c.DeviceStates)).
		Bool("monitor", c.Monitor.Enabled).
		Bool("webhook", c.Webhook.URL != "").
		Bool("nats", c.NATS.URL != "").
		Bool("mqtt", c.MQTT.Broker != "").
		Msg("Configuration loaded")
}
