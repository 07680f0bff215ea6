// Package api exposes the booking core over HTTP: public availability and
// reservation, staff lifecycle operations and the agenda views.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/velvetcut/booking/pkg/observability"
)

// Server is the HTTP server for the booking service.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	logger *slog.Logger
	health *observability.HealthChecker
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	AuthSecret   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer wires the handlers into routes and middleware.
func NewServer(
	cfg ServerConfig,
	availability *AvailabilityHandler,
	appointments *AppointmentsHandler,
	agenda *AgendaHandler,
	health *observability.HealthChecker,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		health: health,
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Public
	s.mux.HandleFunc("POST /availability/options", availability.FindOptions)
	s.mux.HandleFunc("POST /public/appointments", appointments.Reserve)

	// Staff / admin; role checks live in the handlers, the guard here only
	// rejects anonymous callers.
	s.mux.HandleFunc("GET /agenda/staff", requireAuthenticated(agenda.StaffDay))
	s.mux.HandleFunc("POST /appointments/{id}/cancel", appointments.Cancel)
	s.mux.HandleFunc("POST /appointments/{id}/attend", requireAuthenticated(appointments.MarkAttended))
	s.mux.HandleFunc("POST /appointments/{id}/no-show", requireAuthenticated(appointments.MarkNoShow))
	s.mux.HandleFunc("POST /appointments/{id}/payment", requireAuthenticated(appointments.RegisterPayment))
	s.mux.HandleFunc("POST /staff/appointments/{id}/reschedule", requireAuthenticated(appointments.Reschedule))
	s.mux.HandleFunc("POST /staff/appointments/{id}/inline-edit", requireAuthenticated(appointments.InlineEdit))

	// Worker
	s.mux.HandleFunc("GET /agenda/my", requireAuthenticated(agenda.WorkerDay))

	var handler http.Handler = s.mux
	handler = authenticate([]byte(cfg.AuthSecret), logger)(handler)
	handler = accessLog(logger, metrics)(handler)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Run(r.Context())
	status := http.StatusOK
	if report.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting booking API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down booking API server")
	return s.server.Shutdown(ctx)
}
