// Package schedule models a device's weekly schedule: per-day lists of time periods,
// each tagged with the device state that applies during it.
//
// Periods are right-open intervals [From, To) of seconds since local midnight. Two
// periods touch when prev.To == next.From. The day ends at DaySeconds.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// DaySeconds is the length of a schedule day and the end of its last period.
const DaySeconds = 24 * 60 * 60

var (
	ErrScheduleInvalid = errors.New("invalid schedule")
	ErrScheduleCorrupt = errors.New("corrupt schedule")
)

// Day is a day of the week, numbered Monday=1 through Sunday=7.
type Day int

const (
	Monday Day = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Days lists the seven days in order.
var Days = [7]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayNames = map[Day]string{
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

// DayOf converts a time.Weekday.
func DayOf(w time.Weekday) Day {
	if w == time.Sunday {
		return Sunday
	}
	return Day(w)
}

// ParseDay accepts MONDAY..SUNDAY case-insensitively.
func ParseDay(s string) (Day, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for day, name := range dayNames {
		if name == upper {
			return day, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", s)
}

func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Day) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Day(%d)", int(d))
}

// MarshalText implements encoding.TextMarshaler
func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Day) UnmarshalText(text []byte) error {
	day, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = day
	return nil
}

// Period is the interval [From, To) tagged with a device state.
type Period struct {
	From  int               `json:"fromSeconds"`
	To    int               `json:"toSeconds"`
	State devicestate.Value `json:"deviceState"`
}

// Contains reports whether second falls inside the period.
func (p Period) Contains(second int) bool {
	return p.From <= second && second < p.To
}

// Overlaps reports whether p and o share at least one second.
func (p Period) Overlaps(o Period) bool {
	return p.From < o.To && o.From < p.To
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s) %s", FormatClock(p.From), FormatClock(p.To), p.State)
}

// Daily is a day's periods, sorted by From and non-overlapping.
type Daily struct {
	Periods []Period `json:"periods"`
}

func (d Daily) clone() Daily {
	periods := make([]Period, len(d.Periods))
	copy(periods, d.Periods)
	return Daily{Periods: periods}
}

// StateAt returns the state of the first period containing second.
func (d Daily) StateAt(second int) (devicestate.Value, bool) {
	for _, period := range d.Periods {
		if period.Contains(second) {
			return period.State, true
		}
	}
	return devicestate.Value{}, false
}

// Weekly maps days to their schedules. A dense schedule has all seven days, each covering
// the whole day. A sparse schedule holds only non-default periods on days that have any.
type Weekly struct {
	Days map[Day]Daily `json:"schedule"`
}

// Empty returns a dense schedule where def applies all week.
func Empty(def devicestate.Value) Weekly {
	w := Weekly{Days: make(map[Day]Daily, len(Days))}
	for _, day := range Days {
		w.Days[day] = Daily{Periods: []Period{{From: 0, To: DaySeconds, State: def}}}
	}
	return w
}

// Clone returns a deep copy of w.
func (w Weekly) Clone() Weekly {
	out := Weekly{Days: make(map[Day]Daily, len(w.Days))}
	for day, daily := range w.Days {
		out.Days[day] = daily.clone()
	}
	return out
}

// Verify checks the ordering and non-overlap of every day.
func Verify(w Weekly) error {
	for day := range w.Days {
		if !day.Valid() {
			return fmt.Errorf("%w: unknown day %d", ErrScheduleInvalid, int(day))
		}
	}
	for _, day := range Days {
		daily, ok := w.Days[day]
		if !ok {
			continue
		}
		if err := verifyDaily(daily); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}

func verifyDaily(d Daily) error {
	for i, period := range d.Periods {
		if period.From < 0 || period.To > DaySeconds {
			return fmt.Errorf("%w: period %s outside of day", ErrScheduleInvalid, period)
		}
		if period.From > period.To {
			return fmt.Errorf("%w: period %s ends before it starts", ErrScheduleInvalid, period)
		}
		if i > 0 && d.Periods[i-1].To > period.From {
			return fmt.Errorf("%w: period %s overlaps %s", ErrScheduleInvalid, d.Periods[i-1], period)
		}
	}
	return nil
}

func sortPeriods(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].From != periods[j].From {
			return periods[i].From < periods[j].From
		}
		return periods[i].To < periods[j].To
	})
}
