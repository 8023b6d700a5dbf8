package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vesynchub/vesync-core/internal/poller"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade. Browsers cannot attach an Authorization
		// header here, so auth is a single-use ticket from
		// POST /auth/ws-ticket, validated in the handler.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - caller must be logged in
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Device endpoints. Keys are the device CID, or cid-N for a
			// multi-outlet socket.
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/refresh", s.handleRefreshEnergy)

				r.Route("/{key}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Post("/command", s.handleDeviceCommand)
					r.Put("/power", s.handleSetPower)
					r.Put("/brightness", s.handleSetLevel(poller.CmdBrightness))
					r.Put("/mist", s.handleSetLevel(poller.CmdMistLevel))
					r.Put("/humidity", s.handleSetLevel(poller.CmdTargetHumidity))
					r.Put("/mode", s.handleSetMode)
					r.Get("/history", s.handleGetStateHistory)
					r.Get("/energy", s.handleGetEnergyHistory)
				})
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
