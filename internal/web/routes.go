package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/roll-call/internal/web/handlers"
	"github.com/kozaktomas/roll-call/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	verifyHandler := handlers.NewVerifyHandler(s.deps.Verifier)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Attendance)
	configHandler := handlers.NewConfigHandler(s.config)

	requireToken := middleware.RequireAPIToken(s.config.Web.APIToken)

	// Health checks (no auth required)
	s.router.Get("/health", handlers.HealthCheck)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Unversioned alias kept for existing clients; guarded like the versioned route
	s.router.With(requireToken).Post("/verify-face", verifyHandler.VerifyFace)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(requireToken)

		r.Post("/verify-face", verifyHandler.VerifyFace)
		r.Get("/sessions/{sessionID}/attendance", attendanceHandler.ListBySession)
		r.Get("/config", configHandler.Get)
	})
}
