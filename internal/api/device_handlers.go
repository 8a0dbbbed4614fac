package api

import (
	"net/http"

	"github.com/screentime-server/screentime-server/internal/control"
	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
)

// HandleListDevices lists the current user's devices
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	devices, total, err := s.service.Devices(r.Context(), currentUser(r.Context()), limit, offset)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"total":   total,
	})
}

// HandleCreateDevice registers a device and returns its secret once
func (s *RESTServer) HandleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required,max=100"`
		Platform string `json:"platform" validate:"omitempty,oneof=ANDROID WINDOWS LINUX MACOS OTHER"`
		TimeZone string `json:"timeZone" validate:"omitempty,timezone"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	device, secret, err := s.service.RegisterDevice(r.Context(), currentUser(r.Context()), control.NewDevice{
		Name:     req.Name,
		Platform: models.Platform(req.Platform),
		TimeZone: req.TimeZone,
	})
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"device": device,
		"secret": secret,
	})
}

// HandleGetDevice gets a device
func (s *RESTServer) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	device, err := s.service.Device(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// HandleUpdateDevice updates a device
func (s *RESTServer) HandleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
		Platform *string `json:"platform,omitempty" validate:"omitempty,oneof=ANDROID WINDOWS LINUX MACOS OTHER"`
		TimeZone *string `json:"timeZone,omitempty" validate:"omitempty,timezone"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	update := control.DeviceUpdate{Name: req.Name, TimeZone: req.TimeZone}
	if req.Platform != nil {
		platform := models.Platform(*req.Platform)
		update.Platform = &platform
	}

	device, err := s.service.UpdateDevice(r.Context(), currentUser(r.Context()), id, update)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// HandleDeleteDevice deletes a device
func (s *RESTServer) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	if err := s.service.DeleteDevice(r.Context(), currentUser(r.Context()), id); err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListDeviceStates lists the states selectable for the current user's devices
func (s *RESTServer) HandleListDeviceStates(w http.ResponseWriter, r *http.Request) {
	instances, err := s.service.StateInstances(r.Context(), currentUser(r.Context()))
	if err != nil {
		s.respondServiceError(w, err, "device state")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"deviceStates": instances,
		"definitions":  s.service.Catalogue().Definitions(),
	})
}

// HandleGetState resolves the current state of a device
func (s *RESTServer) HandleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	current, err := s.service.CurrentState(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, current)
}

// HandleSetForcedState overrides the schedule of a device
func (s *RESTServer) HandleSetForcedState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	var req struct {
		DeviceState string `json:"deviceState" validate:"required,devicestate"`
		Extra       string `json:"extra"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	forced := devicestate.Value{DeviceState: devicestate.DeviceState(req.DeviceState), Extra: req.Extra}
	current, err := s.service.SetForcedState(r.Context(), currentUser(r.Context()), id, &forced)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, current)
}

// HandleClearForcedState returns a device to its schedule
func (s *RESTServer) HandleClearForcedState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	current, err := s.service.ClearForcedState(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	s.respondJSON(w, http.StatusOK, current)
}

// HandleListReports lists the usage reports of a device
func (s *RESTServer) HandleListReports(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "device")
	if !ok {
		return
	}

	if _, err := s.service.Device(r.Context(), currentUser(r.Context()), id); err != nil {
		s.respondServiceError(w, err, "device")
		return
	}

	limit, offset := pagination(r)
	reports, total, err := s.store.ListUsageReports(r.Context(), id, limit, offset)
	if err != nil {
		s.respondServiceError(w, err, "report")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"total":   total,
	})
}
