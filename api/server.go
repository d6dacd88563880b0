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
  4. CORS:       Cross-origin requests for admin frontends

ROUTE GROUPS:
  /api/employees/*   Employees, attendance, per-employee payroll
  /api/branches/*    Branches, device ingestion, batch runs
  /api/payroll       Month-wide approval queues
  /healthz           Liveness probe

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)

			r.Get("/{id}/attendance", h.GetAttendanceRange)
			r.Post("/{id}/attendance/{date}/override", h.OverrideAttendance)
			r.Post("/{id}/absences", h.MarkAbsent)
			r.Get("/{id}/summary/{month}", h.GetMonthlySummary)

			r.Post("/{id}/payroll", h.CalculatePayroll)
			r.Get("/{id}/payroll/{month}", h.GetPayroll)
			r.Post("/{id}/payroll/{month}/transition", h.TransitionPayroll)
			r.Post("/{id}/payroll/{month}/corrections", h.RecordCorrection)
		})

		// Branch routes
		r.Route("/branches", func(r chi.Router) {
			r.Post("/", h.CreateBranch)
			r.Get("/{id}", h.GetBranch)
			r.Post("/{id}/ingest", h.IngestDevice)
			r.Post("/{id}/payroll/run", h.RunBranchPayroll)
			r.Post("/{id}/leave/accrue", h.AccrueLeave)
		})

		// Month-wide approval queues
		r.Get("/payroll", h.ListPayroll)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
