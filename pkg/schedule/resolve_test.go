package schedule

import (
	"errors"
	"testing"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

func boundaryFixture() Weekly {
	w := Empty(active)
	w.Days[Monday] = Daily{Periods: []Period{
		{0, 3600, group1},
		{3600, 7200, locked},
		{7200, DaySeconds, active},
	}}
	return w
}

func TestResolve_BoundarySecond(t *testing.T) {
	w := boundaryFixture()
	tests := []struct {
		second int
		want   devicestate.Value
	}{
		{0, group1},
		{3599, group1},
		{3600, locked},
		{7199, locked},
		{7200, active},
		{DaySeconds - 1, active},
	}
	for _, tt := range tests {
		got, err := Resolve(w, LocalTime{Day: Monday, Second: tt.second}, nil)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", tt.second, err)
		}
		if !got.Automatic.Equal(tt.want) || !got.Final.Equal(tt.want) {
			t.Errorf("second %d: got %+v, want %v", tt.second, got, tt.want)
		}
		if got.Forced != nil {
			t.Errorf("second %d: unexpected forced state %v", tt.second, *got.Forced)
		}
	}
}

func TestResolve_Forced(t *testing.T) {
	w := boundaryFixture()
	forced := devicestate.Value{DeviceState: devicestate.LoggedOut}
	for _, second := range []int{0, 3600, 50000} {
		got, err := Resolve(w, LocalTime{Day: Monday, Second: second}, &forced)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !got.Final.Equal(forced) {
			t.Errorf("second %d: final %v, want %v", second, got.Final, forced)
		}
		if got.Forced == nil || !got.Forced.Equal(forced) {
			t.Errorf("second %d: forced %v", second, got.Forced)
		}
		auto, _ := w.Days[Monday].StateAt(second)
		if !got.Automatic.Equal(auto) {
			t.Errorf("second %d: automatic %v, want %v", second, got.Automatic, auto)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	w := boundaryFixture()
	now := LocalTime{Day: Monday, Second: 4000}
	first, err := Resolve(w, now, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Resolve(w, now, nil)
		if !again.Automatic.Equal(first.Automatic) {
			t.Fatalf("got %v, then %v", first.Automatic, again.Automatic)
		}
	}
}

func TestResolve_Corrupt(t *testing.T) {
	sparse := Weekly{Days: map[Day]Daily{Monday: {Periods: []Period{{3600, 7200, locked}}}}}

	if _, err := Resolve(sparse, LocalTime{Day: Tuesday, Second: 0}, nil); !errors.Is(err, ErrScheduleCorrupt) {
		t.Errorf("missing day: got %v, want ErrScheduleCorrupt", err)
	}
	if _, err := Resolve(sparse, LocalTime{Day: Monday, Second: 100}, nil); !errors.Is(err, ErrScheduleCorrupt) {
		t.Errorf("missing period: got %v, want ErrScheduleCorrupt", err)
	}
}
