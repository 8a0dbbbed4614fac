package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/internal/storage"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// Schedule returns the dense schedule of a device
func (s *Service) Schedule(ctx context.Context, actor *models.User, id uuid.UUID) (schedule.Weekly, error) {
	device, err := s.Device(ctx, actor, id)
	if err != nil {
		return schedule.Weekly{}, err
	}
	return s.dense(device)
}

// SparseSchedule returns the schedule of a device as stored
func (s *Service) SparseSchedule(ctx context.Context, actor *models.User, id uuid.UUID) (schedule.Weekly, error) {
	device, err := s.Device(ctx, actor, id)
	if err != nil {
		return schedule.Weekly{}, err
	}
	return device.Schedule.Clone(), nil
}

// SetSchedule replaces the schedule of a device and returns the stored result in
// dense form. Periods left unset take the default state.
func (s *Service) SetSchedule(ctx context.Context, actor *models.User, id uuid.UUID, w schedule.Weekly) (schedule.Weekly, error) {
	for day, daily := range w.Days {
		for _, period := range daily.Periods {
			if err := checkPeriod(day, period); err != nil {
				return schedule.Weekly{}, err
			}
		}
	}
	sparse, err := s.packer.Pack(w)
	if err != nil {
		return schedule.Weekly{}, err
	}

	err = s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		if !actor.CanManage(device.UserID) {
			return ErrForbidden
		}
		for _, day := range schedule.Days {
			for _, period := range sparse.Days[day].Periods {
				if err := s.acceptState(ctx, tx, device, period.State); err != nil {
					return err
				}
			}
		}
		if err := tx.UpdateDeviceSchedule(ctx, id, sparse); err != nil {
			return err
		}
		typ, description := models.EventTypeScheduleUpdate, "schedule replaced"
		if len(sparse.Days) == 0 {
			typ, description = models.EventTypeScheduleReset, "schedule reset"
		}
		s.recordEvent(ctx, tx, &id, &actor.ID, typ, description, nil)
		return nil
	})
	if err != nil {
		return schedule.Weekly{}, err
	}

	log.Info().Str("device_id", id.String()).Int("days", len(sparse.Days)).Msg("Schedule replaced")
	return s.packer.Unpack(sparse)
}

// AddPeriod writes period into one day of the device schedule, replacing whatever
// it overlaps, and returns the new dense schedule.
func (s *Service) AddPeriod(ctx context.Context, actor *models.User, id uuid.UUID, day schedule.Day, period schedule.Period) (schedule.Weekly, error) {
	if err := checkPeriod(day, period); err != nil {
		return schedule.Weekly{}, err
	}

	var result schedule.Weekly
	err := s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		if !actor.CanManage(device.UserID) {
			return ErrForbidden
		}
		if err := s.acceptState(ctx, tx, device, period.State); err != nil {
			return err
		}

		dense, err := s.dense(device)
		if err != nil {
			return err
		}
		edited := schedule.AddPeriod(dense, day, period)
		if err := schedule.Verify(edited); err != nil {
			return err
		}
		sparse, err := s.packer.Pack(edited)
		if err != nil {
			return err
		}
		if err := tx.UpdateDeviceSchedule(ctx, id, sparse); err != nil {
			return err
		}

		s.recordEvent(ctx, tx, &id, &actor.ID, models.EventTypeScheduleUpdate,
			fmt.Sprintf("%s %s", day, period), nil)
		result = edited
		return nil
	})
	if err != nil {
		return schedule.Weekly{}, err
	}
	return result, nil
}

// checkPeriod rejects periods that are empty or leave the day
func checkPeriod(day schedule.Day, period schedule.Period) error {
	if !day.Valid() {
		return fmt.Errorf("%w: unknown day %d", schedule.ErrScheduleInvalid, day)
	}
	if period.From < 0 || period.To > schedule.DaySeconds || period.From >= period.To {
		return fmt.Errorf("%w: bad period %s on %s", schedule.ErrScheduleInvalid, period, day)
	}
	return nil
}

// dense unpacks the stored schedule of a device
func (s *Service) dense(device *models.Device) (schedule.Weekly, error) {
	dense, err := s.packer.Unpack(device.Schedule)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleInvalid) {
			return schedule.Weekly{}, fmt.Errorf("%w: stored schedule: %v", schedule.ErrScheduleCorrupt, err)
		}
		return schedule.Weekly{}, err
	}
	return dense, nil
}
