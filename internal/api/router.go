package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter mounts the /api/v1 routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.traceMiddleware, s.recoveryMiddleware, s.corsMiddleware, limitBodyMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/integrations", func(r chi.Router) {
			r.Get("/", s.handleListIntegrations)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/devices/{device_id}/state", s.handleSetDeviceState)
				r.Post("/actions", s.handleRunAction)
			})
		})

		r.Get("/audit", s.handleListAuditLogs)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "registry unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"integrations": len(infos),
		"ws_clients":   s.hub.ClientCount(),
	})
}
