package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/system"
)

// SystemHandler handles system-related API endpoints.
type SystemHandler struct {
	svc Service
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(svc Service) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// GetInfo handles GET /api/v1/system/info
// Returns static system information (hostname, OS, kernel, Pi model).
func (h *SystemHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeData(w, system.GetInfo(r.Context()))
}

// Reset handles POST /api/v1/system/reset
// Forces hotspot mode and schedules a restart.
func (h *SystemHandler) Reset(w http.ResponseWriter, r *http.Request) {
	log.Warn().Str("remote", r.RemoteAddr).Msg("Reset to hotspot mode requested")
	writeOutcome(w, h.svc.ResetToHotspot(r.Context()))
}

// History handles GET /api/v1/system/history?limit=N
func (h *SystemHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	hist, err := h.svc.History(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read history")
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	writeData(w, hist)
}
