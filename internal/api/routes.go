package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
		r.Post("/device", s.HandleDeviceLogin)
	})

	// Device routes
	r.Route("/device", func(r chi.Router) {
		r.Use(s.deviceMiddleware)
		r.Post("/report", s.HandleDeviceReport)
		r.Get("/state", s.HandleDeviceState)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", s.HandleGetCurrentUser)
			r.Group(func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Get("/", s.HandleListUsers)
				r.Post("/", s.HandleCreateUser)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.HandleGetUser)
					r.Put("/", s.HandleUpdateUser)
					r.Delete("/", s.HandleDeleteUser)
				})
			})
		})

		// App groups
		r.Route("/app-groups", func(r chi.Router) {
			r.Get("/", s.HandleListAppGroups)
			r.Post("/", s.HandleCreateAppGroup)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetAppGroup)
				r.Put("/", s.HandleUpdateAppGroup)
				r.Delete("/", s.HandleDeleteAppGroup)
			})
		})

		// Selectable states
		r.Get("/device-states", s.HandleListDeviceStates)

		// Devices
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.HandleListDevices)
			r.Post("/", s.HandleCreateDevice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetDevice)
				r.Put("/", s.HandleUpdateDevice)
				r.Delete("/", s.HandleDeleteDevice)

				// Schedule management
				r.Get("/schedule", s.HandleGetSchedule)
				r.Put("/schedule", s.HandleSetSchedule)
				r.Post("/schedule/periods", s.HandleAddPeriod)

				// State management
				r.Get("/state", s.HandleGetState)
				r.Put("/forced-state", s.HandleSetForcedState)
				r.Delete("/forced-state", s.HandleClearForcedState)

				// Data
				r.Get("/reports", s.HandleListReports)
			})
		})

		// Events
		r.Get("/events", s.HandleListEvents)
		if s.hub != nil {
			r.Get("/ws", s.HandleWebSocket)
		}
	})
}
