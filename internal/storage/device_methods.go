package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// ========== Device Methods ==========

const deviceColumns = `id, created_at, updated_at, user_id, name, platform, time_zone, token_hash,
	schedule, forced_state, forced_extra, last_state, last_extra, last_seen_at`

// EncodeSchedule serializes a sparse schedule for storage
func EncodeSchedule(sparse schedule.Weekly) (string, error) {
	if sparse.Days == nil {
		sparse.Days = map[schedule.Day]schedule.Daily{}
	}
	data, err := json.Marshal(sparse)
	if err != nil {
		return "", fmt.Errorf("encode schedule: %w", err)
	}
	return string(data), nil
}

// DecodeSchedule parses a stored sparse schedule. Unreadable or invalid data yields an
// empty sparse schedule, which unpacks to the default state all week.
func DecodeSchedule(deviceID uuid.UUID, data string) schedule.Weekly {
	var sparse schedule.Weekly
	err := json.Unmarshal([]byte(data), &sparse)
	if err == nil {
		err = schedule.Verify(sparse)
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("device_id", deviceID.String()).
			Msg("Stored schedule is unreadable, falling back to empty schedule")
		return schedule.Weekly{Days: map[schedule.Day]schedule.Daily{}}
	}
	if sparse.Days == nil {
		sparse.Days = map[schedule.Day]schedule.Daily{}
	}
	return sparse
}

func stateArgs(v *devicestate.Value) (sql.NullString, string) {
	if v == nil {
		return sql.NullString{}, ""
	}
	return sql.NullString{String: string(v.DeviceState), Valid: true}, v.Extra
}

func stateFromColumns(state sql.NullString, extra string) *devicestate.Value {
	if !state.Valid || state.String == "" {
		return nil
	}
	return &devicestate.Value{DeviceState: devicestate.DeviceState(state.String), Extra: extra}
}

func scanDevice(row interface{ Scan(...interface{}) error }) (*models.Device, error) {
	device := &models.Device{}
	var (
		scheduleData           string
		forcedState, lastState sql.NullString
		forcedExtra, lastExtra string
	)

	err := row.Scan(
		&device.ID, &device.CreatedAt, &device.UpdatedAt, &device.UserID, &device.Name,
		&device.Platform, &device.TimeZone, &device.TokenHash,
		&scheduleData, &forcedState, &forcedExtra, &lastState, &lastExtra, &device.LastSeenAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	device.Schedule = DecodeSchedule(device.ID, scheduleData)
	device.ForcedState = stateFromColumns(forcedState, forcedExtra)
	device.LastState = stateFromColumns(lastState, lastExtra)
	return device, nil
}

// CreateDevice creates a new device. Schedule must be sparse.
func (s *SQLStore) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	if device.Platform == "" {
		device.Platform = models.PlatformOther
	}

	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	scheduleData, err := EncodeSchedule(device.Schedule)
	if err != nil {
		return err
	}
	forcedState, forcedExtra := stateArgs(device.ForcedState)
	lastState, lastExtra := stateArgs(device.LastState)

	_, err = s.exec(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID, device.CreatedAt, device.UpdatedAt, device.UserID, device.Name,
		device.Platform, device.TimeZone, device.TokenHash,
		scheduleData, forcedState, forcedExtra, lastState, lastExtra, device.LastSeenAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// GetDevice gets a device by ID
func (s *SQLStore) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	return scanDevice(s.queryRow(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id))
}

// UpdateDevice updates everything but the schedule
func (s *SQLStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now().UTC()

	forcedState, forcedExtra := stateArgs(device.ForcedState)
	lastState, lastExtra := stateArgs(device.LastState)

	result, err := s.exec(ctx, `
		UPDATE devices SET
			updated_at = ?, name = ?, platform = ?, time_zone = ?, token_hash = ?,
			forced_state = ?, forced_extra = ?, last_state = ?, last_extra = ?, last_seen_at = ?
		WHERE id = ?`,
		device.UpdatedAt, device.Name, device.Platform, device.TimeZone, device.TokenHash,
		forcedState, forcedExtra, lastState, lastExtra, device.LastSeenAt, device.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// UpdateDeviceSchedule replaces the stored sparse schedule
func (s *SQLStore) UpdateDeviceSchedule(ctx context.Context, id uuid.UUID, sparse schedule.Weekly) error {
	scheduleData, err := EncodeSchedule(sparse)
	if err != nil {
		return err
	}

	result, err := s.exec(ctx, `UPDATE devices SET updated_at = ?, schedule = ? WHERE id = ?`,
		time.Now().UTC(), scheduleData, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// DeleteDevice deletes a device
func (s *SQLStore) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	result, err := s.exec(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ListDevices lists devices, optionally of one user. A limit of 0 lists all.
func (s *SQLStore) ListDevices(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*models.Device, int64, error) {
	var args []interface{}
	where := ""
	if userID != nil {
		where = ` WHERE user_id = ?`
		args = append(args, *userID)
	}

	var count int64
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM devices`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := s.query(ctx, `SELECT `+deviceColumns+` FROM devices`+where+` ORDER BY created_at`+pageClause(limit, offset), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, device)
	}
	return devices, count, rows.Err()
}
