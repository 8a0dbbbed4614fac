package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/screentime-server/screentime-server/internal/control"
	"github.com/screentime-server/screentime-server/internal/models"
	"github.com/screentime-server/screentime-server/internal/storage"
	"github.com/screentime-server/screentime-server/pkg/crypto"
	"github.com/screentime-server/screentime-server/pkg/devicestate"
	"github.com/screentime-server/screentime-server/pkg/schedule"
)

// ========== Auth handlers ==========

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// HandleLogin handles user login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	// Get user
	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Verify password
	if !s.auth.VerifyPassword(req.Password, user.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	// Check user status
	if !user.IsActive {
		s.respondError(w, http.StatusForbidden, "account is disabled")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(user)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to record login")
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.config.JWT.AccessTokenTTL.Seconds()),
		TokenType:    "Bearer",
	})
}

// HandleRefresh handles token refresh
func (s *RESTServer) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	accessToken, refreshToken, err := s.auth.RefreshToken(r.Context(), req.RefreshToken, s.store.GetUser)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.config.JWT.AccessTokenTTL.Seconds()),
		TokenType:    "Bearer",
	})
}

// HandleDeviceLogin exchanges a device secret for a device token
func (s *RESTServer) HandleDeviceLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID uuid.UUID `json:"device_id" validate:"required"`
		Secret   string    `json:"secret" validate:"required"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	device, err := s.service.AuthenticateDevice(r.Context(), req.DeviceID, req.Secret)
	if err != nil {
		if errors.Is(err, control.ErrInvalidCredentials) {
			s.respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.respondServiceError(w, err, "device")
		return
	}

	token, err := s.auth.GenerateDeviceToken(device)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.config.JWT.DeviceTokenTTL.Seconds()),
		TokenType:   "Bearer",
	})
}

// ========== User handlers ==========

// HandleGetCurrentUser gets current user
func (s *RESTServer) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, currentUser(r.Context()))
}

// HandleListUsers lists users
func (s *RESTServer) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, total, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(w, err, "user")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"total": total,
	})
}

// HandleCreateUser creates a user
func (s *RESTServer) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		Name     string `json:"name" validate:"max=100"`
		IsAdmin  bool   `json:"is_admin"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user := &models.User{
		Email:        strings.ToLower(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
		IsAdmin:      req.IsAdmin,
		IsActive:     true,
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			s.respondError(w, http.StatusConflict, "user with this email already exists")
			return
		}
		s.respondServiceError(w, err, "user")
		return
	}

	s.respondJSON(w, http.StatusCreated, user)
}

// HandleGetUser gets a user
func (s *RESTServer) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "user")
	if !ok {
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, err, "user")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleUpdateUser updates a user
func (s *RESTServer) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := s.urlID(w, r, "user")
	if !ok {
		return
	}

	var req struct {
		Name     *string `json:"name,omitempty" validate:"omitempty,max=100"`
		Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
		IsActive *bool   `json:"is_active,omitempty"`
		IsAdmin  *bool   `json:"is_admin,omitempty"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		s.respondServiceError(w, err, "user")
		return
	}

	// Update fields
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Password != nil {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
		user.PasswordHash = hash
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.respondServiceError(w, err, "user")
		return
	}

	s.respondJSON(w, http.StatusOK, user)
}

// HandleDeleteUser deletes a user
func (s *RESTServer) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.urlID(w, r, "user")
	if !ok {
		return
	}

	if id == currentUser(r.Context()).ID {
		s.respondError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.respondServiceError(w, err, "user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Events ==========

// HandleListEvents lists the events of the current user's devices. Admins see all.
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())
	limit, offset := pagination(r)
	q := r.URL.Query()

	var filters storage.EventLogFilters
	if !user.IsAdmin {
		filters.OwnerID = &user.ID
	}
	if raw := q.Get("device_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid device id")
			return
		}
		if _, err := s.service.Device(r.Context(), user, id); err != nil {
			s.respondServiceError(w, err, "device")
			return
		}
		filters.DeviceID = &id
		filters.OwnerID = nil
	}
	if raw := q.Get("type"); raw != "" {
		typ := models.EventType(raw)
		filters.Type = &typ
	}
	for param, target := range map[string]**time.Time{"start": &filters.StartTime, "end": &filters.EndTime} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid "+param+" time")
			return
		}
		*target = &t
	}

	events, total, err := s.store.ListEventLogs(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondServiceError(w, err, "event")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// HandleRoot root handler
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": s.config.Server.Name,
		"version": s.config.Server.Version,
		"health":  "/api/v1/health",
	})
}

// ========== Helper methods ==========

// decode reads a JSON body into dst and validates it. It responds and returns false on failure.
func (s *RESTServer) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validator.Validate(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *RESTServer) urlID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondServiceError maps domain errors onto status codes
func (s *RESTServer) respondServiceError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, control.ErrForbidden):
		s.respondError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, storage.ErrDuplicateKey):
		s.respondError(w, http.StatusConflict, what+" already exists")
	case errors.Is(err, schedule.ErrScheduleInvalid), errors.Is(err, devicestate.ErrInvalidState):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, schedule.ErrScheduleCorrupt):
		s.respondError(w, http.StatusInternalServerError, "stored schedule is unreadable")
	default:
		log.Error().Err(err).Str("resource", what).Msg("Request failed")
		s.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
