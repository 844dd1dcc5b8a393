/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employees/*      Clock events, sessions, schedules, hour bank, requests
  /api/requests/*       Edit request approval flow
  /api/admin/*          Maintenance sweeps

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees/{id}", func(r chi.Router) {
			// Clock events
			r.Post("/clock-in", h.ClockIn)
			r.Post("/clock-out", h.ClockOut)
			r.Post("/breaks/start", h.StartBreak)
			r.Post("/breaks/end", h.EndBreak)

			// Sessions
			r.Get("/sessions", h.ListSessions)
			r.Get("/sessions/{date}", h.GetSession)
			r.Put("/sessions/{date}/justification", h.SetJustification)

			// Schedule assignments
			r.Get("/assignments", h.ListAssignments)
			r.Post("/assignments", h.CreateAssignment)

			// Hour bank
			r.Get("/bank", h.GetBank)
			r.Put("/bank/caps", h.SetCaps)
			r.Post("/bank/periods", h.OpenPeriod)
			r.Get("/transactions", h.ListTransactions)
			r.Post("/adjustments", h.CreateAdjustment)

			// Edit requests (employee view)
			r.Get("/requests", h.ListRequests)
			r.Post("/requests", h.SubmitRequest)
		})

		// Edit request approval flow
		r.Route("/requests", func(r chi.Router) {
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/decide", h.DecideRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
		})
	})

	return r
}
