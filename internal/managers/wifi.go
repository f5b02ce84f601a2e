// Package managers wires the wireless components into the operations the
// API and the CLI expose.
package managers

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/database"
	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/hotspot"
	"github.com/nuclearlighters/wifisetup/internal/journal"
	"github.com/nuclearlighters/wifisetup/internal/metrics"
	"github.com/nuclearlighters/wifisetup/internal/modes"
	"github.com/nuclearlighters/wifisetup/internal/orchestrator"
	"github.com/nuclearlighters/wifisetup/internal/scanner"
	"github.com/nuclearlighters/wifisetup/internal/status"
	"github.com/nuclearlighters/wifisetup/internal/system"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
	"github.com/nuclearlighters/wifisetup/internal/wpaconf"
)

// WiFiOptions carry the optional collaborators of a WiFiManager.
type WiFiOptions struct {
	// DB enables the transition and attempt journal.
	DB *sql.DB
	// Metrics may be nil.
	Metrics *metrics.Collector
	// Restarter defaults to one built from the settings.
	Restarter *system.Restarter
}

// System state keys written at boot.
const (
	stateLastBootMode = "last_boot_mode"
	stateLastBootAt   = "last_boot_at"
)

// History is the recent journal content.
type History struct {
	LastBootMode string               `json:"last_boot_mode,omitempty"`
	LastBootAt   string               `json:"last_boot_at,omitempty"`
	Transitions  []journal.Transition `json:"transitions"`
	Attempts     []journal.Attempt    `json:"attempts"`
}

// WiFiManager is the single entry point for network operations.
type WiFiManager struct {
	cfg        *config.Settings
	hotspotCfg config.HotspotConfig

	store     *wpaconf.Store
	status    *status.Reporter
	hotspot   *hotspot.Manager
	scanner   *scanner.Scanner
	conn      *orchestrator.Connector
	machine   *modes.Machine
	restarter *system.Restarter
	journal   *journal.Store
	db        *sql.DB
	metrics   *metrics.Collector
}

// NewWiFiManager builds the component graph for cfg.
func NewWiFiManager(cfg *config.Settings, hc config.HotspotConfig, runner execx.Runner, opts WiFiOptions) *WiFiManager {
	m := &WiFiManager{cfg: cfg, hotspotCfg: hc, metrics: opts.Metrics}

	m.store = wpaconf.NewStore(cfg.WPASupplicantConf, hc.CountryCode, wpaconf.Options{HashPassphrase: cfg.HashPassphrase})
	m.status = status.New(cfg.Interface, runner, hc.SSID, hc.IP)
	m.hotspot = hotspot.NewManager(runner, cfg.Interface, cfg.HostapdConf, cfg.DnsmasqConf, cfg.DnsmasqLeases)

	m.scanner = scanner.New(cfg.Interface, runner, m.store, m.status)
	m.scanner.Guard = scanner.NewGuard(cfg.ScanFailureThreshold, cfg.ScanBackoff)
	if opts.Metrics != nil {
		m.scanner.Metrics = opts.Metrics
	}

	m.conn = orchestrator.New(runner, m.store, m.status, m.hotspot, orchestrator.Options{
		Interface:          cfg.Interface,
		DHCPClient:         cfg.DHCPClient,
		SettleDelay:        cfg.SettleDelay,
		PollInterval:       cfg.PollInterval,
		MaxAttempts:        cfg.MaxVerifyAttempts,
		ProgressResetDelay: cfg.ProgressResetDelay,
		Config:             wpaconf.Options{HashPassphrase: cfg.HashPassphrase},
	})

	m.restarter = opts.Restarter
	if m.restarter == nil {
		m.restarter = system.NewRestarter(runner, cfg.RebootCommand, cfg.RebootGrace, cfg.DisableReboot)
	}
	m.restarter.OnSchedule = func(string) { m.metrics.IncRestart() }

	m.machine = modes.New(m.conn, m.hotspot, m.restarter, m.status, m.store, modes.Options{
		MarkerPath:       cfg.HostModeFile,
		LockPath:         cfg.LockFile,
		Hotspot:          hc,
		BootCheckTimeout: cfg.BootCheckTimeout,
		PollInterval:     cfg.PollInterval,
	})

	if opts.DB != nil {
		m.db = opts.DB
		m.journal = journal.New(opts.DB)
		m.conn.Journal = m.journal
		m.machine.Journal = m.journal
	}
	if opts.Metrics != nil {
		m.conn.Metrics = opts.Metrics
		m.machine.Metrics = opts.Metrics
		opts.Metrics.SetMode(m.machine.Mode())
	}
	return m
}

// Boot runs the boot-time connectivity check, then records the result and
// prunes journal rows past the retention window.
func (m *WiFiManager) Boot(ctx context.Context) (wifi.Mode, error) {
	mode, err := m.machine.Boot(ctx)
	if m.db == nil {
		return mode, err
	}

	if err := database.SetSystemState(m.db, stateLastBootMode, string(mode)); err != nil {
		log.Warn().Err(err).Msg("Failed to record boot mode")
	}
	if err := database.SetSystemState(m.db, stateLastBootAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		log.Warn().Err(err).Msg("Failed to record boot time")
	}
	if m.cfg.HistoryRetention > 0 {
		if n, err := m.journal.Prune(ctx, m.cfg.HistoryRetention); err != nil {
			log.Warn().Err(err).Msg("Failed to prune journal")
		} else if n > 0 {
			log.Info().Int64("rows", n).Msg("Pruned journal")
		}
	}
	return mode, err
}

// ScanNetworks returns the visible networks. While a connection attempt is
// verifying its association the radio is left alone and the previous
// result is returned.
func (m *WiFiManager) ScanNetworks(ctx context.Context) ([]wifi.Network, error) {
	if m.conn.Verifying() {
		last, at := m.scanner.Last()
		log.Debug().Time("taken", at).Msg("Connection verifying, serving cached scan")
		return last, nil
	}
	return m.scanner.Scan(ctx)
}

// Connect joins a client network through the mode state machine.
func (m *WiFiManager) Connect(ctx context.Context, creds wifi.Credentials) modes.Outcome {
	return m.machine.Connect(ctx, creds)
}

// GetStatus returns the live interface status. While a transition is
// running the mode is reported as transitioning.
func (m *WiFiManager) GetStatus(ctx context.Context) wifi.Status {
	st := m.status.Current(ctx)
	if m.machine.Mode() == wifi.ModeTransitioning {
		st.Mode = wifi.ModeTransitioning
	}
	return st
}

// ResetToHotspot forces hotspot mode and schedules a restart.
func (m *WiFiManager) ResetToHotspot(ctx context.Context) modes.Outcome {
	return m.machine.ResetToHotspot(ctx, "reset requested")
}

// ListSavedNetworks returns the saved client networks, marking the one the
// device is associated with.
func (m *WiFiManager) ListSavedNetworks(ctx context.Context) ([]wifi.SavedNetwork, error) {
	saved, err := m.store.List()
	if err != nil {
		return nil, err
	}
	st := m.status.Current(ctx)
	for i := range saved {
		saved[i].Current = st.Mode == wifi.ModeClient && st.Connected && saved[i].SSID == st.SSID
	}
	return saved, nil
}

// ForgetNetwork removes a saved network. The current network is refused.
func (m *WiFiManager) ForgetNetwork(ctx context.Context, id int) (wifi.SavedNetwork, error) {
	return m.machine.Forget(ctx, id)
}

// Progress returns the state of the running or last connection attempt.
func (m *WiFiManager) Progress() wifi.ConnectionAttempt {
	return m.conn.Attempt()
}

// Mode returns the committed mode, or transitioning.
func (m *WiFiManager) Mode() wifi.Mode {
	return m.machine.Mode()
}

// RestartScheduled returns when the pending restart fires, zero when none.
func (m *WiFiManager) RestartScheduled() time.Time {
	return m.restarter.Scheduled()
}

// WaitRestart blocks until a scheduled restart has been issued.
func (m *WiFiManager) WaitRestart(ctx context.Context) error {
	return m.restarter.Wait(ctx)
}

// History returns recent transitions and attempts. It is empty when the
// journal is disabled.
func (m *WiFiManager) History(ctx context.Context, limit int) (History, error) {
	h := History{Transitions: []journal.Transition{}, Attempts: []journal.Attempt{}}
	if m.journal == nil {
		return h, nil
	}
	var err error
	if h.LastBootMode, err = database.GetSystemState(m.db, stateLastBootMode); err != nil {
		return History{}, err
	}
	if h.LastBootAt, err = database.GetSystemState(m.db, stateLastBootAt); err != nil {
		return History{}, err
	}
	if h.Transitions, err = m.journal.Transitions(ctx, limit); err != nil {
		return History{}, err
	}
	if h.Attempts, err = m.journal.Attempts(ctx, limit); err != nil {
		return History{}, err
	}
	return h, nil
}

// HotspotConfig returns the access point settings with the password
// redacted.
func (m *WiFiManager) HotspotConfig() config.HotspotConfig {
	return m.hotspotCfg.Redacted()
}

// HotspotQRCode renders the join code of the access point as a PNG.
func (m *WiFiManager) HotspotQRCode(size int) ([]byte, error) {
	return hotspot.QRCode(m.hotspotCfg, size)
}

// HotspotClients lists the stations associated with the access point.
func (m *WiFiManager) HotspotClients(ctx context.Context) []hotspot.Client {
	if m.machine.Mode() != wifi.ModeHotspot {
		return []hotspot.Client{}
	}
	return m.hotspot.Clients(ctx)
}
