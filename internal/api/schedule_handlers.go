package api

import (
	"encoding/json"
	"net/http"

	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// clockValue is a time of day given as "HH:MM[:SS]" or as seconds since midnight
type clockValue string

// UnmarshalJSON implements json.Unmarshaler
func (c *clockValue) UnmarshalJSON(data []byte) error {
	var seconds int
	if err := json.Unmarshal(data, &seconds); err == nil {
		*c = clockValue(schedule.FormatClock(seconds))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = clockValue(s)
	return nil
}

func (c clockValue) seconds() int {
	// validated by the clock tag
	n, _ := schedule.ParseClock(string(c))
	return n
}

// HandleGetSchedule returns the weekly schedule of a device. ?form=sparse returns it
// as stored, without the default periods.
func (s *RESTServer) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	var (
		weekly schedule.Weekly
		err    error
	)
	switch r.URL.Query().Get("form") {
	case "", "dense":
		weekly, err = s.service.Schedule(r.Context(), currentUser(r.Context()), id)
	case "sparse":
		weekly, err = s.service.SparseSchedule(r.Context(), currentUser(r.Context()), id)
	default:
		s.respondError(w, http.StatusBadRequest, "form must be dense or sparse")
		return
	}
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, weekly)
}

// HandleSetSchedule replaces the weekly schedule of a device
func (s *RESTServer) HandleSetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	var req schedule.Weekly
	if !s.decode(w, r, &req) {
		return
	}

	dense, err := s.service.SetSchedule(r.Context(), currentUser(r.Context()), id, req)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, dense)
}

// HandleAddPeriod sets one period of one day, replacing what it overlaps
func (s *RESTServer) HandleAddPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	var req struct {
		Day         string     `json:"day" validate:"required,day"`
		From        clockValue `json:"from" validate:"required,clock"`
		To          clockValue `json:"to" validate:"required,clock"`
		DeviceState string     `json:"deviceState" validate:"required,devicestate"`
		Extra       string     `json:"extra"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	day, _ := schedule.ParseDay(req.Day)
	state := devicestate.Value{DeviceState: devicestate.DeviceState(req.DeviceState), Extra: req.Extra}
	period := schedule.Period{From: req.From.seconds(), To: req.To.seconds(), State: state}

	dense, err := s.service.AddPeriod(r.Context(), currentUser(r.Context()), id, day, period)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, dense)
}
