package main

import (
	"database/sql"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/database"
	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/managers"
	"github.com/nuclearlighters/wifisetup/internal/metrics"
)

type commandContext struct {
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Settings
	configErr  error
}

func newCommandContext(logLevelFlag *string) *commandContext {
	return &commandContext{logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.Settings, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = strings.TrimSpace(*c.logLevelFlag)
		}
		setupLogging(cfg.LogLevel)
		c.config = cfg
	})
	return c.config, c.configErr
}

// stack is everything a command needs to drive the radio.
type stack struct {
	cfg     *config.Settings
	mgr     *managers.WiFiManager
	db      *sql.DB
	metrics *metrics.Collector
}

func (s *stack) close() {
	if err := database.Close(s.db); err != nil {
		log.Warn().Err(err).Msg("Error closing database")
	}
}

// openStack builds the manager. A journal that cannot be opened is logged
// and skipped; the radio works without it.
func (c *commandContext) openStack(withMetrics bool) (*stack, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	hc, err := cfg.LoadHotspot()
	if err != nil {
		return nil, err
	}

	s := &stack{cfg: cfg}

	if db, err := database.Open(cfg.DatabasePath); err != nil {
		log.Warn().Err(err).Msg("Failed to open database - history disabled")
	} else if err := database.CheckIntegrity(db); err != nil {
		log.Error().Err(err).Str("path", cfg.DatabasePath).Msg("Database is corrupt - history disabled")
		database.Close(db)
	} else {
		s.db = db
	}

	if withMetrics && cfg.MetricsEnabled {
		if s.metrics, err = metrics.New(prometheus.DefaultRegisterer); err != nil {
			log.Warn().Err(err).Msg("Failed to register metrics")
			s.metrics = nil
		}
	}

	runner := execx.NewSystem(cfg.CommandTimeout, cfg.UseSudo)
	s.mgr = managers.NewWiFiManager(cfg, hc, runner, managers.WiFiOptions{
		DB:      s.db,
		Metrics: s.metrics,
	})
	return s, nil
}

// setupLogging configures zerolog based on log level. Terminals get the
// console writer, everything else (journald) gets JSON.
func setupLogging(level string) {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
