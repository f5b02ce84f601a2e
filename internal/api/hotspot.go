package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/hotspot"
)

// HotspotHandler handles the access point endpoints.
type HotspotHandler struct {
	svc Service
}

// NewHotspotHandler creates a new HotspotHandler.
func NewHotspotHandler(svc Service) *HotspotHandler {
	return &HotspotHandler{svc: svc}
}

// Config handles GET /api/v1/hotspot/config
func (h *HotspotHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeData(w, h.svc.HotspotConfig())
}

// Clients handles GET /api/v1/hotspot/clients
func (h *HotspotHandler) Clients(w http.ResponseWriter, r *http.Request) {
	clients := h.svc.HotspotClients(r.Context())
	if clients == nil {
		clients = []hotspot.Client{}
	}
	writeData(w, clients)
}

// QRCode handles GET /api/v1/hotspot/qrcode?size=N
func (h *HotspotHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 64 || n > 1024 {
			writeError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := h.svc.HotspotQRCode(size)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render hotspot QR code")
		writeError(w, http.StatusInternalServerError, "Failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
