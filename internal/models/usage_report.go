package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// AppUsage is the foreground time of one application within a report
type AppUsage struct {
	App     string `json:"app" validate:"required"`
	Seconds int64  `json:"seconds" validate:"gte=0"`
}

// AppUsageList is stored as a JSON array
type AppUsageList []AppUsage

// Value implements driver.Valuer
func (l AppUsageList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]AppUsage(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (l *AppUsageList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]AppUsage)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]AppUsage)(l))
	default:
		return fmt.Errorf("cannot scan %T into AppUsageList", value)
	}
}

// UsageReport is a periodic report sent by a device
type UsageReport struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
	DeviceID   uuid.UUID    `json:"deviceId" db:"device_id"`
	ReportedAt time.Time    `json:"reportedAt" db:"reported_at"`
	Usage      AppUsageList `json:"usage" db:"usage"`

	// State is the final state the device was told to apply in response
	State devicestate.Value `json:"state" db:"state"`
}
