package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClaimsContextKey is the context key for JWT claims.
const ClaimsContextKey contextKey = "claims"

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	jwtService *JWTService
	admin      *Admin
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(jwtService *JWTService, admin *Admin) *Middleware {
	return &Middleware{
		jwtService: jwtService,
		admin:      admin,
	}
}

// RequireAuth is middleware that requires a valid access token when an
// admin password is configured. Without one every request passes.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.admin.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			unauthorized(w, "missing or invalid authorization header")
			return
		}

		claims, err := m.jwtService.ValidateAccessToken(token)
		if err != nil {
			log.Debug().Err(err).Msg("Token validation failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaimsFromContext retrieves the JWT claims from the request context.
func GetClaimsFromContext(ctx context.Context) *Claims {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// extractBearerToken extracts the JWT token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	// Check for "Bearer " prefix (case-insensitive)
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}

	return ""
}

// errorBody matches the API response envelope.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Success: false, Message: message})
}

// unauthorized sends a 401 Unauthorized response.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="wifisetup"`)
	writeError(w, http.StatusUnauthorized, message)
}
