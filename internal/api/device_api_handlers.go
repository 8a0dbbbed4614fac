package api

import (
	"net/http"
	"time"

	"github.com/screentime-server/screentime-server/internal/control"
	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// stateResponse is what a device receives after a report
type stateResponse struct {
	FinalState     string `json:"finalState"`
	Extra          string `json:"extra,omitempty"`
	AutomaticState string `json:"automaticState"`
	Forced         bool   `json:"forced"`
}

func newStateResponse(current schedule.CurrentState) stateResponse {
	return stateResponse{
		FinalState:     string(current.Final.DeviceState),
		Extra:          current.Final.Extra,
		AutomaticState: string(current.Automatic.DeviceState),
		Forced:         current.Forced != nil,
	}
}

// HandleDeviceReport stores a usage report and answers with the state to apply
func (s *RESTServer) HandleDeviceReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportedAt *time.Time        `json:"reportedAt,omitempty"`
		Usage      []models.AppUsage `json:"usage" validate:"dive"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	input := control.UsageInput{Usage: req.Usage}
	if req.ReportedAt != nil {
		input.ReportedAt = req.ReportedAt.UTC()
	}

	current, err := s.service.Report(r.Context(), currentDevice(r.Context()), input)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, newStateResponse(current))
}

// HandleDeviceState answers with the state to apply without storing a report
func (s *RESTServer) HandleDeviceState(w http.ResponseWriter, r *http.Request) {
	current, err := s.service.DeviceState(r.Context(), currentDevice(r.Context()))
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, newStateResponse(current))
}
