package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

const sampleConfig = `
api:
  port: 9090
database:
  driver: sqlite
  dsn: /tmp/devices.db
jwt:
  secret: s3cret
  access_token_ttl: 5m
schedule:
  default_state:
    device_state: ACTIVE
  default_timezone: Europe/Berlin
device_states:
  - device_state: ACTIVE
    title: Active
  - device_state: APP_DISABLED
    title: Limit to group
    arguments: [APP_GROUP]
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.API.Port != 9090 {
		t.Errorf("port: got %d", cfg.API.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver: got %q", cfg.Database.Driver)
	}
	if cfg.JWT.AccessTokenTTL != 5*time.Minute {
		t.Errorf("access ttl: got %v", cfg.JWT.AccessTokenTTL)
	}
	if cfg.JWT.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("refresh ttl default: got %v", cfg.JWT.RefreshTokenTTL)
	}
	if !cfg.Schedule.DefaultState.Equal(devicestate.Default) {
		t.Errorf("default state: got %v", cfg.Schedule.DefaultState)
	}
	if cfg.MQTT.TopicPattern != "devices/{device_id}/state" {
		t.Errorf("mqtt topic: got %q", cfg.MQTT.TopicPattern)
	}
	if cfg.Monitor.Spec != "@every 1m" {
		t.Errorf("monitor spec: got %q", cfg.Monitor.Spec)
	}

	catalogue, err := cfg.Catalogue()
	if err != nil {
		t.Fatalf("Catalogue: %v", err)
	}
	if def, ok := catalogue.Lookup(devicestate.AppDisabled); !ok || !def.TakesAppGroup() {
		t.Errorf("APP_DISABLED: got %+v, %v", def, ok)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Errorf("location: got %v", loc)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("jwt:\n  secret: x\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver: got %q", cfg.Database.Driver)
	}
	if len(cfg.DeviceStates) != len(devicestate.DefaultDefinitions) {
		t.Errorf("device states: got %d", len(cfg.DeviceStates))
	}
}

func TestParse_UnsupportedArguments(t *testing.T) {
	data := `
jwt:
  secret: x
device_states:
  - device_state: SCREEN_TIME
    title: Screen time
    arguments: [MINUTES]
`
	if _, err := Parse([]byte(data)); !errors.Is(err, devicestate.ErrUnsupportedArguments) {
		t.Errorf("got %v, want ErrUnsupportedArguments", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	tests := map[string]string{
		"missing secret":     "api:\n  port: 1\n",
		"bad driver":         "jwt:\n  secret: x\ndatabase:\n  driver: oracle\n",
		"bad timezone":       "jwt:\n  secret: x\nschedule:\n  default_timezone: Mars/Olympus\n",
		"bad yaml":           "jwt: [",
		"bad qos":            "jwt:\n  secret: x\nmqtt:\n  qos: 3\n",
		"unknown default":    "jwt:\n  secret: x\nschedule:\n  default_state:\n    device_state: ACTIVEE\n",
		"default with group": "jwt:\n  secret: x\nschedule:\n  default_state:\n    device_state: APP_DISABLED\n    extra: games\n",
		"default with extra": "jwt:\n  secret: x\nschedule:\n  default_state:\n    device_state: LOCKED\n    extra: games\n",
	}
	for name, data := range tests {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_URL", "file:other.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("secret: got %q", cfg.JWT.Secret)
	}
	if cfg.Database.DSN != "file:other.db" {
		t.Errorf("dsn: got %q", cfg.Database.DSN)
	}
}
