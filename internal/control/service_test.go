package control

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/internal/storage"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// Monday 2024-01-01 10:00 UTC
var monday10 = time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)

var (
	active = devicestate.Value{DeviceState: devicestate.Active}
	locked = devicestate.Value{DeviceState: devicestate.Locked}
)

type fixture struct {
	store   *storage.SQLStore
	service *Service
	owner   *models.User
	other   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "control.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	catalogue, err := devicestate.NewCatalogue(devicestate.DefaultDefinitions)
	if err != nil {
		t.Fatalf("NewCatalogue: %v", err)
	}

	service := NewService(store, schedule.NewPacker(active), catalogue, time.UTC)
	service.now = func() time.Time { return monday10 }

	f := &fixture{store: store, service: service}
	f.owner = f.user(t, "owner@example.com")
	f.other = f.user(t, "other@example.com")
	return f
}

func (f *fixture) user(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, PasswordHash: "x", IsActive: true}
	if err := f.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func (f *fixture) device(t *testing.T) *models.Device {
	t.Helper()
	device, _, err := f.service.RegisterDevice(context.Background(), f.owner, NewDevice{Name: "tablet", Platform: models.PlatformAndroid})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	return device
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	device, secret, err := f.service.RegisterDevice(ctx, f.owner, NewDevice{Name: " phone "})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if device.Name != "phone" {
		t.Errorf("name: got %q", device.Name)
	}
	if secret == "" || device.TokenHash == secret {
		t.Fatal("secret must be returned and stored hashed")
	}

	if _, err := f.service.AuthenticateDevice(ctx, device.ID, secret); err != nil {
		t.Errorf("AuthenticateDevice: %v", err)
	}
	if _, err := f.service.AuthenticateDevice(ctx, device.ID, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong secret: got %v", err)
	}

	dense, err := f.service.Schedule(ctx, f.owner, device.ID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(dense.Days) != 7 {
		t.Errorf("dense days: got %d", len(dense.Days))
	}

	events, _, err := f.store.ListEventLogs(ctx, storage.EventLogFilters{DeviceID: &device.ID}, 0, 0)
	if err != nil {
		t.Fatalf("ListEventLogs: %v", err)
	}
	if len(events) != 1 || events[0].Type != models.EventTypeRegistered {
		t.Errorf("events: got %+v", events)
	}
}

func TestAddPeriod_ResolvesAndPersists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	period := schedule.Period{From: 9 * 3600, To: 11 * 3600, State: locked}
	dense, err := f.service.AddPeriod(ctx, f.owner, device.ID, schedule.Monday, period)
	if err != nil {
		t.Fatalf("AddPeriod: %v", err)
	}
	if got := len(dense.Days[schedule.Monday].Periods); got != 3 {
		t.Errorf("monday periods: got %d", got)
	}

	sparse, err := f.service.SparseSchedule(ctx, f.owner, device.ID)
	if err != nil {
		t.Fatalf("SparseSchedule: %v", err)
	}
	if len(sparse.Days) != 1 || len(sparse.Days[schedule.Monday].Periods) != 1 {
		t.Errorf("sparse: got %+v", sparse)
	}

	current, err := f.service.CurrentState(ctx, f.owner, device.ID)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if !current.Final.Equal(locked) || !current.Automatic.Equal(locked) || current.Forced != nil {
		t.Errorf("current: got %+v", current)
	}
}

func TestAddPeriod_Rejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	tests := map[string]struct {
		day    schedule.Day
		period schedule.Period
		want   error
	}{
		"empty":         {schedule.Monday, schedule.Period{From: 100, To: 100, State: locked}, schedule.ErrScheduleInvalid},
		"reversed":      {schedule.Monday, schedule.Period{From: 200, To: 100, State: locked}, schedule.ErrScheduleInvalid},
		"past day end":  {schedule.Monday, schedule.Period{From: 0, To: schedule.DaySeconds + 1, State: locked}, schedule.ErrScheduleInvalid},
		"bad day":       {schedule.Day(9), schedule.Period{From: 0, To: 10, State: locked}, schedule.ErrScheduleInvalid},
		"unknown state": {schedule.Monday, schedule.Period{From: 0, To: 10, State: devicestate.Value{DeviceState: "SHUTDOWN"}}, devicestate.ErrInvalidState},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := f.service.AddPeriod(ctx, f.owner, device.ID, tt.day, tt.period); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	if _, err := f.service.Schedule(ctx, f.other, device.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Schedule: got %v", err)
	}
	if _, err := f.service.SetForcedState(ctx, f.other, device.ID, &locked); !errors.Is(err, ErrForbidden) {
		t.Errorf("SetForcedState: got %v", err)
	}
	if err := f.service.DeleteDevice(ctx, f.other, device.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteDevice: got %v", err)
	}

	admin := f.user(t, "admin@example.com")
	admin.IsAdmin = true
	if _, err := f.service.Schedule(ctx, admin, device.ID); err != nil {
		t.Errorf("admin Schedule: %v", err)
	}
}

func TestDevices_Scope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.device(t)
	if _, _, err := f.service.RegisterDevice(ctx, f.other, NewDevice{Name: "laptop"}); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}

	admin := f.user(t, "admin@example.com")
	admin.IsAdmin = true

	tests := map[string]struct {
		actor *models.User
		want  int64
	}{
		"owner": {f.owner, 1},
		"other": {f.other, 1},
		"admin": {admin, 2},
	}
	for name, tt := range tests {
		devices, total, err := f.service.Devices(ctx, tt.actor, 0, 0)
		if err != nil {
			t.Fatalf("%s: Devices: %v", name, err)
		}
		if total != tt.want || int64(len(devices)) != tt.want {
			t.Errorf("%s: got %d devices of %d, want %d", name, len(devices), total, tt.want)
		}
	}
}

func TestForcedState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	current, err := f.service.SetForcedState(ctx, f.owner, device.ID, &locked)
	if err != nil {
		t.Fatalf("SetForcedState: %v", err)
	}
	if !current.Final.Equal(locked) || !current.Automatic.Equal(active) || current.Forced == nil {
		t.Errorf("forced: got %+v", current)
	}

	current, err = f.service.ClearForcedState(ctx, f.owner, device.ID)
	if err != nil {
		t.Fatalf("ClearForcedState: %v", err)
	}
	if !current.Final.Equal(active) || current.Forced != nil {
		t.Errorf("cleared: got %+v", current)
	}
}

func TestForcedState_AppGroup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	limit := devicestate.Value{DeviceState: devicestate.AppDisabled, Extra: "missing"}
	if _, err := f.service.SetForcedState(ctx, f.owner, device.ID, &limit); !errors.Is(err, devicestate.ErrInvalidState) {
		t.Errorf("unknown group: got %v", err)
	}

	group := &models.AppGroup{UserID: f.owner.ID, Name: "Games", Apps: models.StringArray{"chess"}}
	if err := f.store.CreateAppGroup(ctx, group); err != nil {
		t.Fatalf("CreateAppGroup: %v", err)
	}
	limit.Extra = group.ID.String()
	current, err := f.service.SetForcedState(ctx, f.owner, device.ID, &limit)
	if err != nil {
		t.Fatalf("SetForcedState: %v", err)
	}
	if !current.Final.Equal(limit) {
		t.Errorf("final: got %v", current.Final)
	}

	instances, err := f.service.StateInstances(ctx, f.owner)
	if err != nil {
		t.Fatalf("StateInstances: %v", err)
	}
	// three plain states plus one per group
	if len(instances) != 4 {
		t.Errorf("instances: got %d", len(instances))
	}
}

func TestSetSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	w := schedule.Weekly{Days: map[schedule.Day]schedule.Daily{
		schedule.Monday: {Periods: []schedule.Period{{From: 0, To: 12 * 3600, State: locked}}},
	}}
	dense, err := f.service.SetSchedule(ctx, f.owner, device.ID, w)
	if err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}
	if len(dense.Days) != 7 {
		t.Errorf("dense days: got %d", len(dense.Days))
	}

	overlapping := schedule.Weekly{Days: map[schedule.Day]schedule.Daily{
		schedule.Monday: {Periods: []schedule.Period{
			{From: 0, To: 100, State: locked},
			{From: 50, To: 150, State: locked},
		}},
	}}
	if _, err := f.service.SetSchedule(ctx, f.owner, device.ID, overlapping); !errors.Is(err, schedule.ErrScheduleInvalid) {
		t.Errorf("overlapping: got %v", err)
	}

	empty := schedule.Weekly{Days: map[schedule.Day]schedule.Daily{
		schedule.Tuesday: {Periods: []schedule.Period{{From: 3600, To: 3600, State: locked}}},
	}}
	if _, err := f.service.SetSchedule(ctx, f.owner, device.ID, empty); !errors.Is(err, schedule.ErrScheduleInvalid) {
		t.Errorf("zero-length period: got %v", err)
	}
	if sparse, err := f.service.SparseSchedule(ctx, f.owner, device.ID); err != nil || len(sparse.Days[schedule.Tuesday].Periods) != 0 {
		t.Errorf("zero-length period stored: %+v, %v", sparse, err)
	}

	if _, err := f.service.SetSchedule(ctx, f.owner, device.ID, schedule.Weekly{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	sparse, err := f.service.SparseSchedule(ctx, f.owner, device.ID)
	if err != nil {
		t.Fatalf("SparseSchedule: %v", err)
	}
	if len(sparse.Days) != 0 {
		t.Errorf("reset left %+v", sparse)
	}
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	current, err := f.service.Report(ctx, device.ID, UsageInput{Usage: []models.AppUsage{{App: "chess", Seconds: 60}}})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if !current.Final.Equal(active) {
		t.Errorf("final: got %v", current.Final)
	}

	stored, err := f.store.GetDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if stored.LastSeenAt == nil || !stored.LastSeenAt.Equal(monday10) {
		t.Errorf("last seen: got %v", stored.LastSeenAt)
	}

	reports, total, err := f.store.ListUsageReports(ctx, device.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListUsageReports: %v", err)
	}
	if total != 1 || len(reports[0].Usage) != 1 || !reports[0].ReportedAt.Equal(monday10) {
		t.Errorf("reports: got %d %+v", total, reports)
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	change, err := f.service.Refresh(ctx, device.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if change == nil || change.Previous != nil || !change.Current.Final.Equal(active) {
		t.Fatalf("first refresh: got %+v", change)
	}

	if change, err = f.service.Refresh(ctx, device.ID); err != nil || change != nil {
		t.Fatalf("unchanged refresh: got %+v, %v", change, err)
	}

	if _, err := f.service.SetForcedState(ctx, f.owner, device.ID, &locked); err != nil {
		t.Fatalf("SetForcedState: %v", err)
	}
	change, err = f.service.Refresh(ctx, device.ID)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if change == nil || change.Previous == nil || !change.Previous.Equal(active) || !change.Current.Final.Equal(locked) {
		t.Errorf("forced refresh: got %+v", change)
	}
}

func TestDeviceTimeZone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tokyo, _, err := f.service.RegisterDevice(ctx, f.owner, NewDevice{Name: "tablet", TimeZone: "Asia/Tokyo"})
	if err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	// 10:00 UTC is 19:00 in Tokyo
	if _, err := f.service.AddPeriod(ctx, f.owner, tokyo.ID, schedule.Monday, schedule.Period{From: 18 * 3600, To: 20 * 3600, State: locked}); err != nil {
		t.Fatalf("AddPeriod: %v", err)
	}
	current, err := f.service.CurrentState(ctx, f.owner, tokyo.ID)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if !current.Final.Equal(locked) {
		t.Errorf("tokyo: got %v, want %v", current.Final, locked)
	}

	first, second := f.service.zone(tokyo), f.service.zone(tokyo)
	if first != second || first.String() != "Asia/Tokyo" {
		t.Errorf("zone: got %v and %v", first, second)
	}

	unknown := &models.Device{TimeZone: "Mars/Olympus"}
	if loc := f.service.zone(unknown); loc != time.UTC {
		t.Errorf("unknown zone: got %v", loc)
	}
	if loc := f.service.zone(&models.Device{}); loc != time.UTC {
		t.Errorf("unset zone: got %v", loc)
	}
}

func TestForcedState_NotifiesImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	var changes []*StateChange
	f.service.OnStateChange(func(_ context.Context, change *StateChange) {
		changes = append(changes, change)
	})

	if _, err := f.service.SetForcedState(ctx, f.owner, device.ID, &locked); err != nil {
		t.Fatalf("SetForcedState: %v", err)
	}
	if len(changes) != 1 || !changes[0].Current.Final.Equal(locked) || changes[0].DeviceID != device.ID {
		t.Fatalf("after force: got %+v", changes)
	}

	// forcing the same state again changes nothing
	if _, err := f.service.SetForcedState(ctx, f.owner, device.ID, &locked); err != nil {
		t.Fatalf("SetForcedState: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("repeated force: got %d changes", len(changes))
	}

	if _, err := f.service.ClearForcedState(ctx, f.owner, device.ID); err != nil {
		t.Fatalf("ClearForcedState: %v", err)
	}
	if len(changes) != 2 || changes[1].Previous == nil || !changes[1].Previous.Equal(locked) || !changes[1].Current.Final.Equal(active) {
		t.Errorf("after clear: got %+v", changes)
	}

	stored, err := f.store.GetDevice(ctx, device.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if stored.LastState == nil || !stored.LastState.Equal(active) {
		t.Errorf("last state: got %v", stored.LastState)
	}
}

func TestAddPeriod_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	device := f.device(t)

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for hour := 0; hour < 12; hour++ {
		wg.Add(1)
		go func(hour int) {
			defer wg.Done()
			period := schedule.Period{From: hour * 7200, To: hour*7200 + 3600, State: locked}
			if _, err := f.service.AddPeriod(ctx, f.owner, device.ID, schedule.Tuesday, period); err != nil {
				errs <- err
			}
		}(hour)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddPeriod: %v", err)
	}

	sparse, err := f.service.SparseSchedule(ctx, f.owner, device.ID)
	if err != nil {
		t.Fatalf("SparseSchedule: %v", err)
	}
	if got := len(sparse.Days[schedule.Tuesday].Periods); got != 12 {
		t.Errorf("tuesday periods: got %d, want 12", got)
	}
}

func TestDeviceLocks_Released(t *testing.T) {
	locks := newDeviceLocks()

	unlock := locks.lock(uuid.New())
	unlock()
	if len(locks.locks) != 0 {
		t.Errorf("locks left: %d", len(locks.locks))
	}
}
