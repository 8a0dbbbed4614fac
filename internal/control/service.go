// Package control applies schedules and overrides to registered devices. It owns the
// read-modify-write cycle around stored schedules and serializes it per device.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/internal/storage"
	"github.com/screentime-server/screentime-server/pkg/crypto"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

const deviceSecretBytes = 32

var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service coordinates devices, their schedules and their states
type Service struct {
	store     storage.Store
	packer    *schedule.Packer
	catalogue *devicestate.Catalogue
	location  *time.Location
	now       func() time.Time
	locks     *deviceLocks
	zones     sync.Map // time zone name -> *time.Location
	onChange  func(context.Context, *StateChange)
}

// NewService creates a service. loc applies to devices without a time zone.
func NewService(store storage.Store, packer *schedule.Packer, catalogue *devicestate.Catalogue, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		packer:    packer,
		catalogue: catalogue,
		location:  loc,
		now:       time.Now,
		locks:     newDeviceLocks(),
	}
}

// OnStateChange sets the function receiving state changes caused by forced-state
// edits, so they reach subscribers without waiting for the next monitor pass.
// Call it before the service is used.
func (s *Service) OnStateChange(fn func(context.Context, *StateChange)) {
	s.onChange = fn
}

// Catalogue returns the device-state catalogue
func (s *Service) Catalogue() *devicestate.Catalogue {
	return s.catalogue
}

// NewDevice describes a device to register
type NewDevice struct {
	Name     string
	Platform models.Platform
	TimeZone string
}

// RegisterDevice creates a device owned by owner. The returned secret is shown once;
// only its hash is stored.
func (s *Service) RegisterDevice(ctx context.Context, owner *models.User, req NewDevice) (*models.Device, string, error) {
	secret, err := crypto.GenerateRandomString(deviceSecretBytes)
	if err != nil {
		return nil, "", fmt.Errorf("generate device secret: %w", err)
	}
	hash, err := crypto.HashPassword(secret)
	if err != nil {
		return nil, "", fmt.Errorf("hash device secret: %w", err)
	}

	sparse, err := s.packer.Pack(s.packer.Empty())
	if err != nil {
		return nil, "", err
	}

	device := &models.Device{
		UserID:    owner.ID,
		Name:      strings.TrimSpace(req.Name),
		Platform:  req.Platform,
		TimeZone:  req.TimeZone,
		TokenHash: hash,
		Schedule:  sparse,
	}
	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, "", err
	}

	s.recordEvent(ctx, s.store, &device.ID, &owner.ID, models.EventTypeRegistered,
		fmt.Sprintf("device %q registered", device.Name), nil)

	log.Info().
		Str("device_id", device.ID.String()).
		Str("user_id", owner.ID.String()).
		Msg("Device registered")

	return device, secret, nil
}

// AuthenticateDevice checks a device secret
func (s *Service) AuthenticateDevice(ctx context.Context, id uuid.UUID, secret string) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.VerifyPassword(secret, device.TokenHash) {
		return nil, ErrInvalidCredentials
	}
	return device, nil
}

// Device loads a device the actor may manage
func (s *Service) Device(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Device, error) {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(device.UserID) {
		return nil, ErrForbidden
	}
	return device, nil
}

// Devices lists the devices the actor may manage; for admins that is every device
func (s *Service) Devices(ctx context.Context, actor *models.User, limit, offset int) ([]*models.Device, int64, error) {
	if actor.IsAdmin {
		return s.store.ListDevices(ctx, nil, limit, offset)
	}
	return s.store.ListDevices(ctx, &actor.ID, limit, offset)
}

// DeviceUpdate holds the optional fields of a device edit
type DeviceUpdate struct {
	Name     *string
	Platform *models.Platform
	TimeZone *string
}

// UpdateDevice edits name, platform or time zone
func (s *Service) UpdateDevice(ctx context.Context, actor *models.User, id uuid.UUID, update DeviceUpdate) (*models.Device, error) {
	var updated *models.Device
	err := s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		if !actor.CanManage(device.UserID) {
			return ErrForbidden
		}
		if update.Name != nil {
			device.Name = strings.TrimSpace(*update.Name)
		}
		if update.Platform != nil {
			device.Platform = *update.Platform
		}
		if update.TimeZone != nil {
			device.TimeZone = *update.TimeZone
		}
		updated = device
		return tx.UpdateDevice(ctx, device)
	})
	return updated, err
}

// DeleteDevice removes a device
func (s *Service) DeleteDevice(ctx context.Context, actor *models.User, id uuid.UUID) error {
	return s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		if !actor.CanManage(device.UserID) {
			return ErrForbidden
		}
		return tx.DeleteDevice(ctx, id)
	})
}

// zone returns the location of a device. Zones are loaded once per name; unknown
// names fall back to the service location.
func (s *Service) zone(device *models.Device) *time.Location {
	if device.TimeZone == "" {
		return s.location
	}
	if loc, ok := s.zones.Load(device.TimeZone); ok {
		return loc.(*time.Location)
	}

	loc, err := time.LoadLocation(device.TimeZone)
	if err != nil {
		log.Warn().
			Err(err).
			Str("device_id", device.ID.String()).
			Str("time_zone", device.TimeZone).
			Msg("Unknown device time zone, using default")
		loc = s.location
	}
	actual, _ := s.zones.LoadOrStore(device.TimeZone, loc)
	return actual.(*time.Location)
}

// withDevice runs fn on a freshly loaded device inside a transaction while holding
// the device lock. fn must use tx for all storage access.
func (s *Service) withDevice(ctx context.Context, id uuid.UUID, fn func(tx storage.Store, device *models.Device) error) error {
	unlock := s.locks.lock(id)
	defer unlock()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	device, err := tx.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	if err := fn(tx, device); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) recordEvent(ctx context.Context, store storage.Store, deviceID, userID *uuid.UUID, typ models.EventType, description string, details models.Variables) {
	event := &models.EventLog{
		DeviceID:    deviceID,
		UserID:      userID,
		Type:        typ,
		Description: description,
		Details:     details,
	}
	if err := store.CreateEventLog(ctx, event); err != nil {
		log.Error().Err(err).Str("type", string(typ)).Msg("Failed to record event")
	}
}
