package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nuclearlighters/wifisetup/internal/api"
	"github.com/nuclearlighters/wifisetup/internal/auth"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var skipBoot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the boot check and serve the setup API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(ctx, skipBoot)
		},
	}
	cmd.Flags().BoolVar(&skipBoot, "skip-boot-check", false, "Do not run the boot connectivity check")
	return cmd
}

func runServe(cc *commandContext, skipBoot bool) error {
	s, err := cc.openStack(true)
	if err != nil {
		return err
	}
	defer s.close()
	cfg := s.cfg

	log.Info().
		Str("version", cfg.Version).
		Str("listen", cfg.ListenAddr()).
		Str("interface", cfg.Interface).
		Msg("Starting wifisetup server")

	authMW, login, err := initAuth(cfg.JWTSecret, cfg.AdminPassword, cfg.AccessTokenExpiry)
	if err != nil {
		return err
	}

	// Connecting covers config writes, three settle delays, DHCP and the
	// verification budget.
	connectTimeout := cfg.VerifyBudget() + 3*cfg.SettleDelay + 2*cfg.CommandTimeout

	opts := api.RouterOptions{
		Service:        s.mgr,
		Version:        cfg.Version,
		Auth:           authMW,
		Login:          login,
		RequestTimeout: 30 * time.Second,
		ConnectTimeout: connectTimeout,
	}
	if s.metrics != nil {
		opts.Metrics = s.metrics.Handler()
	}

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      api.NewRouter(opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: connectTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// The API comes up first so a device that falls back to hotspot mode
	// is reachable as soon as the access point is.
	if !skipBoot {
		go func() {
			mode, err := s.mgr.Boot(runCtx)
			if err != nil {
				log.Error().Err(err).Msg("Boot check failed")
				return
			}
			log.Info().Str("mode", string(mode)).Msg("Boot check complete")
		}()
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.ListenAddr()).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stop()

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}

// initAuth builds the token middleware and the login handler. Without an
// admin password both are nil and the API is open.
func initAuth(secret, password string, expiry time.Duration) (*auth.Middleware, *auth.Handler, error) {
	admin, err := auth.NewAdmin(password)
	if err != nil {
		return nil, nil, err
	}
	if !admin.Enabled() {
		log.Warn().Msg("No admin password configured - API is open")
		return nil, nil, nil
	}

	if secret == "" {
		if secret, err = auth.GenerateSecretKey(); err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Generated ephemeral JWT signing key")
	}

	jwtService := auth.NewJWTService(secret, expiry)
	return auth.NewMiddleware(jwtService, admin), auth.NewHandler(jwtService, admin), nil
}
