package schedule

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"07:30", 27000, false},
		{"23:59:59", 86399, false},
		{"24:00", DaySeconds, false},
		{"24:01", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"12", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(27000); got != "07:30" {
		t.Errorf("got %q", got)
	}
	if got := FormatClock(86399); got != "23:59:59" {
		t.Errorf("got %q", got)
	}
}

func TestLocalTimeOf(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	// 2026-10-11 is a Sunday; 23:30 UTC is Monday 01:30 at UTC+2.
	now := time.Date(2026, 10, 11, 23, 30, 15, 999, time.UTC)
	got := LocalTimeOf(now, loc)
	want := LocalTime{Day: Monday, Second: 1*3600 + 30*60 + 15}
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
