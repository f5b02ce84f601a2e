package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// WiFiHandler handles the wireless client endpoints.
type WiFiHandler struct {
	svc Service
	// connectTimeout bounds a connection attempt independently of the
	// request, which usually dies with the hotspot.
	connectTimeout time.Duration
}

// NewWiFiHandler creates a new WiFiHandler.
func NewWiFiHandler(svc Service, connectTimeout time.Duration) *WiFiHandler {
	return &WiFiHandler{svc: svc, connectTimeout: connectTimeout}
}

// ConnectRequest is the body of POST /api/v1/wifi/connect.
type ConnectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Security string `json:"security"`
	Hidden   bool   `json:"hidden"`
}

// Status handles GET /api/v1/wifi/status
func (h *WiFiHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.svc.GetStatus(r.Context()))
}

// Mode handles GET /api/v1/wifi/mode
func (h *WiFiHandler) Mode(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Mode      wifi.Mode  `json:"mode"`
		RestartAt *time.Time `json:"restart_at,omitempty"`
	}{Mode: h.svc.Mode()}
	if at := h.svc.RestartScheduled(); !at.IsZero() {
		resp.RestartAt = &at
	}
	writeData(w, resp)
}

// Scan handles GET and POST /api/v1/wifi/scan
func (h *WiFiHandler) Scan(w http.ResponseWriter, r *http.Request) {
	networks, err := h.svc.ScanNetworks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Scan failed")
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if networks == nil {
		networks = []wifi.Network{}
	}
	writeData(w, networks)
}

// Connect handles POST /api/v1/wifi/connect
func (h *WiFiHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	security, err := wifi.ParseSecurity(req.Security)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	creds := wifi.Credentials{
		SSID:     req.SSID,
		Password: req.Password,
		Security: security,
		Hidden:   req.Hidden,
	}

	// The hotspot goes down mid-request, which drops the client connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.connectTimeout)
	defer cancel()

	writeOutcome(w, h.svc.Connect(ctx, creds))
}

// Progress handles GET /api/v1/wifi/connect/progress
func (h *WiFiHandler) Progress(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.svc.Progress())
}

// Saved handles GET /api/v1/wifi/saved
func (h *WiFiHandler) Saved(w http.ResponseWriter, r *http.Request) {
	saved, err := h.svc.ListSavedNetworks(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list saved networks")
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if saved == nil {
		saved = []wifi.SavedNetwork{}
	}
	writeData(w, saved)
}

// Forget handles DELETE /api/v1/wifi/saved/{id}
func (h *WiFiHandler) Forget(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "Invalid network id")
		return
	}

	removed, err := h.svc.ForgetNetwork(r.Context(), id)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Network '" + removed.SSID + "' forgotten",
		Data:    removed,
	})
}
