package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	DeviceID *uuid.UUID `json:"deviceId,omitempty" db:"device_id"`
	UserID   *uuid.UUID `json:"userId,omitempty" db:"user_id"`

	Type        EventType `json:"type" db:"type"`
	Description string    `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	EventTypeStateChange    EventType = "STATE_CHANGE"
	EventTypeForcedState    EventType = "FORCED_STATE"
	EventTypeScheduleUpdate EventType = "SCHEDULE_UPDATE"
	EventTypeRegistered     EventType = "DEVICE_REGISTERED"
	EventTypeScheduleReset  EventType = "SCHEDULE_RESET"
)
