package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/control"
	"github.com/screentime-server/screentime-server/internal/storage"
)

const notifyTimeout = 15 * time.Second

// Monitor periodically resolves every device and reports the ones whose state moved
type Monitor struct {
	service *control.Service
	store   storage.Store
	sinks   []Sink
	cron    *cron.Cron
	logger  zerolog.Logger
}

// NewMonitor creates a monitor running on the cron spec, e.g. "@every 1m"
func NewMonitor(service *control.Service, store storage.Store, spec string, sinks ...Sink) (*Monitor, error) {
	logger := log.With().Str("component", "monitor").Logger()
	m := &Monitor{
		service: service,
		store:   store,
		sinks:   sinks,
		logger:  logger,
	}

	m.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(&logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(&logger)),
	))
	if _, err := m.cron.AddFunc(spec, func() {
		if _, err := m.RunOnce(context.Background()); err != nil {
			m.logger.Error().Err(err).Msg("State check failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("monitor spec %q: %w", spec, err)
	}

	return m, nil
}

// Start starts the schedule; the first check runs immediately
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		if _, err := m.RunOnce(ctx); err != nil {
			m.logger.Error().Err(err).Msg("Initial state check failed")
		}
	}()
	m.cron.Start()

	names := make([]string, 0, len(m.sinks))
	for _, sink := range m.sinks {
		names = append(names, sink.Name())
	}
	m.logger.Info().Strs("sinks", names).Msg("State monitor started")
}

// Stop stops the schedule and waits for a running check
func (m *Monitor) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info().Msg("State monitor stopped")
}

// RunOnce checks every device once and returns the number of changes
func (m *Monitor) RunOnce(ctx context.Context) (int, error) {
	devices, _, err := m.store.ListDevices(ctx, nil, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list devices: %w", err)
	}

	changed := 0
	for _, device := range devices {
		change, err := m.service.Refresh(ctx, device.ID)
		if err != nil {
			m.logger.Warn().Err(err).Str("device_id", device.ID.String()).Msg("Failed to refresh device")
			continue
		}
		if change == nil {
			continue
		}
		changed++
		m.Dispatch(ctx, change)
	}

	if changed > 0 {
		m.logger.Info().Int("devices", len(devices)).Int("changed", changed).Msg("Device states changed")
	}
	return changed, nil
}

// Dispatch delivers change to every sink, logging failed deliveries
func (m *Monitor) Dispatch(ctx context.Context, change *control.StateChange) {
	for _, sink := range m.sinks {
		sctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		err := sink.Notify(sctx, change)
		cancel()
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("sink", sink.Name()).
				Str("device_id", change.DeviceID.String()).
				Msg("Failed to deliver state change")
		}
	}
}
