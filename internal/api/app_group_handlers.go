package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/screentime-server/screentime-server/internal/control"
	"github.com/screentime-server/screentime-server/internal/models"
)

type appGroupRequest struct {
	Name string   `json:"name" validate:"required,max=100"`
	Apps []string `json:"apps" validate:"dive,required"`
}

// HandleListAppGroups lists the current user's app groups
func (s *RESTServer) HandleListAppGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListAppGroups(r.Context(), currentUser(r.Context()).ID)
	if err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"appGroups": groups,
		"total":     len(groups),
	})
}

// HandleCreateAppGroup creates an app group
func (s *RESTServer) HandleCreateAppGroup(w http.ResponseWriter, r *http.Request) {
	var req appGroupRequest
	if !s.decode(w, r, &req) {
		return
	}

	group := &models.AppGroup{
		UserID: currentUser(r.Context()).ID,
		Name:   strings.TrimSpace(req.Name),
		Apps:   models.StringArray(req.Apps),
	}
	if err := s.store.CreateAppGroup(r.Context(), group); err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}

	s.respondJSON(w, http.StatusCreated, group)
}

// HandleGetAppGroup gets an app group
func (s *RESTServer) HandleGetAppGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "app group")
	if !ok {
		return
	}

	group, err := s.appGroup(r, id)
	if err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}

	s.respondJSON(w, http.StatusOK, group)
}

// HandleUpdateAppGroup renames an app group or replaces its apps
func (s *RESTServer) HandleUpdateAppGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "app group")
	if !ok {
		return
	}

	var req appGroupRequest
	if !s.decode(w, r, &req) {
		return
	}

	group, err := s.appGroup(r, id)
	if err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}

	group.Name = strings.TrimSpace(req.Name)
	group.Apps = models.StringArray(req.Apps)
	if err := s.store.UpdateAppGroup(r.Context(), group); err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}

	s.respondJSON(w, http.StatusOK, group)
}

// HandleDeleteAppGroup deletes an app group
func (s *RESTServer) HandleDeleteAppGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "app group")
	if !ok {
		return
	}

	if _, err := s.appGroup(r, id); err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}
	if err := s.store.DeleteAppGroup(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "app group")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// appGroup loads a group the current user may manage
func (s *RESTServer) appGroup(r *http.Request, id uuid.UUID) (*models.AppGroup, error) {
	group, err := s.store.GetAppGroup(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !currentUser(r.Context()).CanManage(group.UserID) {
		return nil, control.ErrForbidden
	}
	return group, nil
}
