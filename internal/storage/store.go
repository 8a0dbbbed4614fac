package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Device methods
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	UpdateDevice(ctx context.Context, device *models.Device) error
	// UpdateDeviceSchedule stores a sparse schedule
	UpdateDeviceSchedule(ctx context.Context, id uuid.UUID, sparse schedule.Weekly) error
	DeleteDevice(ctx context.Context, id uuid.UUID) error
	ListDevices(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*models.Device, int64, error)

	// App group methods
	CreateAppGroup(ctx context.Context, group *models.AppGroup) error
	GetAppGroup(ctx context.Context, id uuid.UUID) (*models.AppGroup, error)
	UpdateAppGroup(ctx context.Context, group *models.AppGroup) error
	DeleteAppGroup(ctx context.Context, id uuid.UUID) error
	ListAppGroups(ctx context.Context, userID uuid.UUID) ([]*models.AppGroup, error)

	// Usage report methods
	CreateUsageReport(ctx context.Context, report *models.UsageReport) error
	ListUsageReports(ctx context.Context, deviceID uuid.UUID, limit, offset int) ([]*models.UsageReport, int64, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	DeviceID  *uuid.UUID
	UserID    *uuid.UUID
	// OwnerID matches events on the owner's devices and events the owner caused
	OwnerID   *uuid.UUID
	Type      *models.EventType
	StartTime *time.Time
	EndTime   *time.Time
}
