package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/auth"
)

// RouterOptions wires the router's dependencies.
type RouterOptions struct {
	Service Service
	Version string
	// Auth guards mutating routes. Nil leaves them open.
	Auth *auth.Middleware
	// Login serves /auth/login. Nil disables the route.
	Login *auth.Handler
	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler
	// RequestTimeout bounds every route except connect.
	RequestTimeout time.Duration
	// ConnectTimeout bounds a connection attempt.
	ConnectTimeout time.Duration
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(opts RouterOptions) chi.Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	requireAuth := func(next http.Handler) http.Handler { return next }
	if opts.Auth != nil {
		requireAuth = opts.Auth.RequireAuth
	}

	health := NewHealthHandler(opts.Service, opts.Version)
	wifiH := NewWiFiHandler(opts.Service, opts.ConnectTimeout)
	systemH := NewSystemHandler(opts.Service)
	hotspotH := NewHotspotHandler(opts.Service)

	r.Method(http.MethodGet, "/health", health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", health)
		if opts.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", opts.Metrics)
		}

		// Connecting outlives the request timeout.
		r.With(requireAuth).Post("/wifi/connect", wifiH.Connect)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(opts.RequestTimeout))

			if opts.Login != nil {
				r.Post("/auth/login", opts.Login.Login)
			}

			r.Get("/wifi/status", wifiH.Status)
			r.Get("/wifi/mode", wifiH.Mode)
			r.Get("/wifi/scan", wifiH.Scan)
			r.Get("/wifi/connect/progress", wifiH.Progress)
			r.Get("/wifi/saved", wifiH.Saved)
			r.Get("/system/info", systemH.GetInfo)
			r.Get("/system/history", systemH.History)
			r.Get("/hotspot/config", hotspotH.Config)
			r.Get("/hotspot/clients", hotspotH.Clients)
			r.Get("/hotspot/qrcode", hotspotH.QRCode)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/wifi/scan", wifiH.Scan)
				r.Delete("/wifi/saved/{id}", wifiH.Forget)
				r.Post("/system/reset", systemH.Reset)
			})
		})
	})

	return r
}

// requestLogger is middleware that logs HTTP requests using zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// corsMiddleware adds CORS headers for cross-origin requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
