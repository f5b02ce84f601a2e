// Package api provides the HTTP handlers for the wifisetup REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/hotspot"
	"github.com/nuclearlighters/wifisetup/internal/managers"
	"github.com/nuclearlighters/wifisetup/internal/modes"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Service is the network manager the handlers drive.
type Service interface {
	ScanNetworks(ctx context.Context) ([]wifi.Network, error)
	Connect(ctx context.Context, creds wifi.Credentials) modes.Outcome
	GetStatus(ctx context.Context) wifi.Status
	ResetToHotspot(ctx context.Context) modes.Outcome
	ListSavedNetworks(ctx context.Context) ([]wifi.SavedNetwork, error)
	ForgetNetwork(ctx context.Context, id int) (wifi.SavedNetwork, error)
	Progress() wifi.ConnectionAttempt
	Mode() wifi.Mode
	RestartScheduled() time.Time
	History(ctx context.Context, limit int) (managers.History, error)
	HotspotConfig() config.HotspotConfig
	HotspotQRCode(size int) ([]byte, error)
	HotspotClients(ctx context.Context) []hotspot.Client
}

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// errorStatus maps a domain error onto an HTTP status code.
func errorStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case wifi.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, wifi.ErrBusy), errors.Is(err, wifi.ErrForgetCurrent):
		return http.StatusConflict
	case errors.Is(err, wifi.ErrNotFound):
		return http.StatusNotFound
	case wifi.IsTimeout(err):
		// The device fell back to hotspot mode; the outcome says so.
		return http.StatusOK
	case wifi.IsScan(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeOutcome reports the result of a mode transition.
func writeOutcome(w http.ResponseWriter, out modes.Outcome) {
	writeJSON(w, errorStatus(out.Err), Response{
		Success: out.Success,
		Message: out.Message,
		Data:    out,
	})
}
