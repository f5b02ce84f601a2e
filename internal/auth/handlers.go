package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Handler handles authentication HTTP requests.
type Handler struct {
	jwtService *JWTService
	admin      *Admin
}

// NewHandler creates a new auth handler.
func NewHandler(jwtService *JWTService, admin *Admin) *Handler {
	return &Handler{
		jwtService: jwtService,
		admin:      admin,
	}
}

// LoginRequest is the request body for the login endpoint.
type LoginRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries an access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Login checks the admin password and returns an access token. With no
// admin password configured the API is open and login is not needed.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.admin.Enabled() {
		writeError(w, http.StatusNotFound, "authentication is not enabled")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.admin.Authenticate(req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			log.Debug().Str("remote", r.RemoteAddr).Msg("Login failed: invalid credentials")
			unauthorized(w, "invalid password")
			return
		}
		log.Error().Err(err).Msg("Authentication error")
		writeError(w, http.StatusInternalServerError, "authentication failed")
		return
	}

	token, expiresAt, err := h.jwtService.GenerateAccessToken("admin")
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate access token")
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	log.Info().Str("remote", r.RemoteAddr).Msg("Admin logged in")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope{
		Success: true,
		Message: "Logged in",
		Data: TokenResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int(time.Until(expiresAt).Seconds()),
			ExpiresAt:   expiresAt,
		},
	})
}
