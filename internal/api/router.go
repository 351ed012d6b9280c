package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/poll", s.handlePoll)
		r.Get("/audit", s.handleListAuditLogs)
		r.Get("/ws", s.handleWebSocket)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{name}", s.handleGetDevice)
			r.Put("/{name}/state", s.handleSetDeviceState)
		})
	})

	return r
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Bridge        any    `json:"bridge"`
	WSClients     int    `json:"ws_clients"`
}

// handleHealth reports 200 when the broker is connected and the cloud
// session is up, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := s.bridge.Status()

	resp := healthResponse{
		Status:        "ok",
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Bridge:        status,
		WSClients:     s.hub.ClientCount(),
	}
	code := http.StatusOK
	if !status.BrokerConnected || !status.Authenticated {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handlePoll wakes the poll loop.
func (s *Server) handlePoll(w http.ResponseWriter, _ *http.Request) {
	s.bridge.Wake()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "poll requested"})
}
