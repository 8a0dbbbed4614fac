package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/internal/storage"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// StateChange describes a device whose resolved state differs from the last one seen
type StateChange struct {
	DeviceID uuid.UUID             `json:"deviceId"`
	UserID   uuid.UUID             `json:"userId"`
	Previous *devicestate.Value    `json:"previous,omitempty"`
	Current  schedule.CurrentState `json:"current"`
	At       time.Time             `json:"at"`
}

// StateInstances lists the selectable states for the actor's devices
func (s *Service) StateInstances(ctx context.Context, actor *models.User) ([]devicestate.Instance, error) {
	groups, err := s.store.ListAppGroups(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	return s.catalogue.Instances(models.StateArguments(groups)), nil
}

// acceptState checks v against the catalogue and the app groups of the device owner
func (s *Service) acceptState(ctx context.Context, tx storage.Store, device *models.Device, v devicestate.Value) error {
	def, ok := s.catalogue.Lookup(v.DeviceState)
	if !ok {
		return fmt.Errorf("%w: unknown state %q", devicestate.ErrInvalidState, v.DeviceState)
	}
	var groups []devicestate.AppGroup
	if def.TakesAppGroup() {
		owned, err := tx.ListAppGroups(ctx, device.UserID)
		if err != nil {
			return err
		}
		groups = models.StateArguments(owned)
	}
	return s.catalogue.Accepts(v, groups)
}

// SetForcedState overrides the schedule of a device until cleared. A nil state clears it.
func (s *Service) SetForcedState(ctx context.Context, actor *models.User, id uuid.UUID, forced *devicestate.Value) (schedule.CurrentState, error) {
	var current schedule.CurrentState
	err := s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		if !actor.CanManage(device.UserID) {
			return ErrForbidden
		}
		description := "forced state cleared"
		if forced != nil {
			if err := s.acceptState(ctx, tx, device, *forced); err != nil {
				return err
			}
			v := *forced
			forced = &v
			description = fmt.Sprintf("state forced to %s", v)
		}

		device.ForcedState = forced
		if err := tx.UpdateDevice(ctx, device); err != nil {
			return err
		}
		s.recordEvent(ctx, tx, &id, &actor.ID, models.EventTypeForcedState, description, nil)

		var err error
		current, err = s.resolve(device)
		return err
	})
	if err != nil {
		return schedule.CurrentState{}, err
	}

	if s.onChange != nil {
		change, err := s.Refresh(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("device_id", id.String()).Msg("Failed to refresh device after forced state")
		} else if change != nil {
			s.onChange(ctx, change)
		}
	}
	return current, nil
}

// ClearForcedState returns a device to its schedule
func (s *Service) ClearForcedState(ctx context.Context, actor *models.User, id uuid.UUID) (schedule.CurrentState, error) {
	return s.SetForcedState(ctx, actor, id, nil)
}

// CurrentState resolves the state of a device the actor may manage
func (s *Service) CurrentState(ctx context.Context, actor *models.User, id uuid.UUID) (schedule.CurrentState, error) {
	device, err := s.Device(ctx, actor, id)
	if err != nil {
		return schedule.CurrentState{}, err
	}
	return s.resolve(device)
}

// DeviceState resolves the state of an authenticated device
func (s *Service) DeviceState(ctx context.Context, id uuid.UUID) (schedule.CurrentState, error) {
	device, err := s.store.GetDevice(ctx, id)
	if err != nil {
		return schedule.CurrentState{}, err
	}
	return s.resolve(device)
}

// UsageInput is what a device sends with each report
type UsageInput struct {
	ReportedAt time.Time
	Usage      []models.AppUsage
}

// Report stores a usage report, marks the device as seen and returns the state the
// device must apply.
func (s *Service) Report(ctx context.Context, id uuid.UUID, input UsageInput) (schedule.CurrentState, error) {
	var current schedule.CurrentState
	err := s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		var err error
		current, err = s.resolve(device)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		reportedAt := input.ReportedAt
		if reportedAt.IsZero() {
			reportedAt = now
		}
		report := &models.UsageReport{
			DeviceID:   id,
			ReportedAt: reportedAt,
			Usage:      models.AppUsageList(input.Usage),
			State:      current.Final,
		}
		if err := tx.CreateUsageReport(ctx, report); err != nil {
			return err
		}

		device.LastSeenAt = &now
		return tx.UpdateDevice(ctx, device)
	})
	if err != nil {
		return schedule.CurrentState{}, err
	}
	return current, nil
}

// Refresh resolves a device and, when its final state moved since the last call,
// stores the new state and returns the change. It returns nil when nothing changed.
func (s *Service) Refresh(ctx context.Context, id uuid.UUID) (*StateChange, error) {
	var change *StateChange
	err := s.withDevice(ctx, id, func(tx storage.Store, device *models.Device) error {
		current, err := s.resolve(device)
		if err != nil {
			return err
		}
		if device.LastState != nil && device.LastState.Equal(current.Final) {
			return nil
		}

		change = &StateChange{
			DeviceID: device.ID,
			UserID:   device.UserID,
			Previous: device.LastState,
			Current:  current,
			At:       s.now().UTC(),
		}

		final := current.Final
		device.LastState = &final
		if err := tx.UpdateDevice(ctx, device); err != nil {
			return err
		}

		details := models.Variables{"state": final.String()}
		if change.Previous != nil {
			details["previous"] = change.Previous.String()
		}
		s.recordEvent(ctx, tx, &device.ID, nil, models.EventTypeStateChange,
			fmt.Sprintf("state changed to %s", final), details)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// resolve finds the current state of device in its own time zone
func (s *Service) resolve(device *models.Device) (schedule.CurrentState, error) {
	dense, err := s.dense(device)
	if err == nil {
		now := schedule.LocalTimeOf(s.now(), s.zone(device))
		var current schedule.CurrentState
		current, err = schedule.Resolve(dense, now, device.ForcedState)
		if err == nil {
			return current, nil
		}
	}

	if errors.Is(err, schedule.ErrScheduleCorrupt) {
		log.Error().Err(err).Str("device_id", device.ID.String()).Msg("Device schedule is corrupt")
	}
	return schedule.CurrentState{}, err
}
