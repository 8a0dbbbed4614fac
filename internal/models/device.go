package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// Platform identifies the client software a device runs
type Platform string

const (
	PlatformAndroid Platform = "ANDROID"
	PlatformWindows Platform = "WINDOWS"
	PlatformLinux   Platform = "LINUX"
	PlatformMacOS   Platform = "MACOS"
	PlatformOther   Platform = "OTHER"
)

// Device represents a registered client device
type Device struct {
	BaseModel

	UserID   uuid.UUID `json:"userId" db:"user_id"`
	Name     string    `json:"name" db:"name"`
	Platform Platform  `json:"platform" db:"platform"`
	TimeZone string    `json:"timeZone,omitempty" db:"time_zone"`

	TokenHash string `json:"-" db:"token_hash"`

	// Schedule holds the sparse weekly schedule as stored
	Schedule    schedule.Weekly    `json:"-" db:"schedule"`
	ForcedState *devicestate.Value `json:"forcedState,omitempty" db:"forced_state"`
	LastState   *devicestate.Value `json:"lastState,omitempty" db:"last_state"`

	LastSeenAt *time.Time `json:"lastSeenAt,omitempty" db:"last_seen_at"`
}
