// Package devicestate defines the behavioral modes a managed device can be put into,
// and the catalogue that turns state definitions into selectable instances.
package devicestate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidState         = errors.New("invalid device state")
	ErrUnsupportedArguments = errors.New("unsupported device-state arguments")
)

// DeviceState names a behavioral mode. Any non-empty identifier is valid.
type DeviceState string

// Well-known device states. Catalogues may add more.
const (
	Active      DeviceState = "ACTIVE"
	Locked      DeviceState = "LOCKED"
	LoggedOut   DeviceState = "LOGGED_OUT"
	AppDisabled DeviceState = "APP_DISABLED"
)

// Parse validates s as a device state identifier.
func Parse(s string) (DeviceState, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrInvalidState)
	}
	return DeviceState(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *DeviceState) UnmarshalText(text []byte) error {
	state, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = state
	return nil
}

// Value is a device state as applied to a device. Extra carries the argument of
// parameterized states (an app group id); the empty string means no argument.
type Value struct {
	DeviceState DeviceState `json:"deviceState" yaml:"device_state"`
	Extra       string      `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Default is the background state of every schedule.
var Default = Value{DeviceState: Active}

// Equal reports whether both values name the same state with the same argument.
func (v Value) Equal(other Value) bool {
	return v.DeviceState == other.DeviceState && v.Extra == other.Extra
}

func (v Value) String() string {
	if v.Extra == "" {
		return string(v.DeviceState)
	}
	return string(v.DeviceState) + "(" + v.Extra + ")"
}
