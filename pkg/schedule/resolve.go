package schedule

import (
	"fmt"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// CurrentState is the outcome of resolving a schedule at a moment.
type CurrentState struct {
	Final     devicestate.Value  `json:"finalState"`
	Automatic devicestate.Value  `json:"automaticState"`
	Forced    *devicestate.Value `json:"forcedState,omitempty"`
}

// Resolve finds the state of dense at now. A non-nil forced state overrides the
// schedule. Failing lookups mean the schedule is not dense and return ErrScheduleCorrupt.
func Resolve(dense Weekly, now LocalTime, forced *devicestate.Value) (CurrentState, error) {
	daily, ok := dense.Days[now.Day]
	if !ok {
		return CurrentState{}, fmt.Errorf("%w: schedule missing day %s", ErrScheduleCorrupt, now.Day)
	}

	automatic, ok := daily.StateAt(now.Second)
	if !ok {
		return CurrentState{}, fmt.Errorf("%w: schedule missing period for time %s", ErrScheduleCorrupt, now)
	}

	current := CurrentState{
		Final:     automatic,
		Automatic: automatic,
	}
	if forced != nil {
		f := *forced
		current.Final = f
		current.Forced = &f
	}
	return current, nil
}
