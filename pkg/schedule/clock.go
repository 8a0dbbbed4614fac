package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock parses "HH:MM" or "HH:MM:SS" into seconds since midnight. "24:00" is
// accepted as the end of the day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	var fields [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		fields[i] = n
	}

	hour, minute, second := fields[0], fields[1], fields[2]
	if minute > 59 || second > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	total := hour*3600 + minute*60 + second
	if total > DaySeconds {
		return 0, fmt.Errorf("time of day %q past end of day", s)
	}
	return total, nil
}

// FormatClock renders seconds since midnight as "HH:MM" or "HH:MM:SS".
func FormatClock(seconds int) string {
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// LocalTime is a moment reduced to a day of the week and a second of that day.
type LocalTime struct {
	Day    Day
	Second int
}

// LocalTimeOf converts t into loc and decomposes it. Sub-second precision is dropped.
func LocalTimeOf(t time.Time, loc *time.Location) LocalTime {
	if loc != nil {
		t = t.In(loc)
	}
	return LocalTime{
		Day:    DayOf(t.Weekday()),
		Second: t.Hour()*3600 + t.Minute()*60 + t.Second(),
	}
}

func (l LocalTime) String() string {
	return fmt.Sprintf("%s %s", l.Day, FormatClock(l.Second))
}
