package api

import (
	"net/http"

	"github.com/nuclearlighters/wifisetup/internal/system"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// HealthResponse is the JSON response for the /health endpoint.
type HealthResponse struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	Mode          wifi.Mode `json:"mode"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

// HealthHandler handles GET /health requests.
type HealthHandler struct {
	svc     Service
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(svc Service, version string) *HealthHandler {
	return &HealthHandler{svc: svc, version: version}
}

// ServeHTTP implements http.Handler for the health check endpoint.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Mode:          h.svc.Mode(),
		UptimeSeconds: int64(system.Uptime(r.Context()).Seconds()),
	})
}
