// Package modes owns the network mode of the device. It is the only writer
// of the host-mode marker and linearizes every mode-changing operation.
package modes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/journal"
	"github.com/nuclearlighters/wifisetup/internal/orchestrator"
	"github.com/nuclearlighters/wifisetup/internal/steplog"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Connector runs client connection attempts.
type Connector interface {
	Validate(creds wifi.Credentials) error
	Connect(ctx context.Context, creds wifi.Credentials) orchestrator.Result
	Forget(ctx context.Context, id int, currentSSID string) (wifi.SavedNetwork, error)
}

// Hotspot brings the access point up.
type Hotspot interface {
	Activate(ctx context.Context, hc config.HotspotConfig) error
}

// Restarter applies a committed mode.
type Restarter interface {
	Schedule(reason string) (time.Time, bool)
}

// StatusSource reports the live interface status.
type StatusSource interface {
	Current(ctx context.Context) wifi.Status
}

// SavedLister lists saved client networks.
type SavedLister interface {
	SSIDs() ([]string, error)
}

// TransitionRecorder persists committed transitions.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, from, to wifi.Mode, reason, ssid string) (journal.Transition, error)
}

// ModeRecorder publishes the current mode.
type ModeRecorder interface {
	SetMode(m wifi.Mode)
}

// Options configure a Machine.
type Options struct {
	MarkerPath       string
	LockPath         string
	Hotspot          config.HotspotConfig
	BootCheckTimeout time.Duration
	PollInterval     time.Duration
}

// Outcome is the result of a mode-changing request.
type Outcome struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Mode      wifi.Mode       `json:"mode"`
	RestartAt time.Time       `json:"restart_at,omitzero"`
	Steps     []steplog.Entry `json:"steps,omitempty"`
	Err       error           `json:"-"`
}

// Machine is the single owner of the mode. Mutations are serialized by an
// in-process mutex and a lock file shared with other wifisetup processes.
type Machine struct {
	conn      Connector
	hotspot   Hotspot
	restarter Restarter
	status    StatusSource
	saved     SavedLister
	opts      Options
	logger    zerolog.Logger

	// Journal and Metrics are optional.
	Journal TransitionRecorder
	Metrics ModeRecorder

	op   sync.Mutex
	lock *flock.Flock

	mu   sync.RWMutex
	mode wifi.Mode

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a machine. The initial mode is derived from the marker file:
// present means hotspot, absent means client.
func New(conn Connector, hotspot Hotspot, restarter Restarter, status StatusSource, saved SavedLister, opts Options) *Machine {
	m := &Machine{
		conn:      conn,
		hotspot:   hotspot,
		restarter: restarter,
		status:    status,
		saved:     saved,
		opts:      opts,
		logger:    log.With().Str("component", "modes").Logger(),
		lock:      flock.New(opts.LockPath),
		mode:      wifi.ModeClient,
		sleep:     sleepContext,
	}
	if m.markerPresent() {
		m.mode = wifi.ModeHotspot
	}
	return m
}

// Mode returns the current mode.
func (m *Machine) Mode() wifi.Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Busy reports whether a mode-changing operation is running in this
// process.
func (m *Machine) Busy() bool {
	if m.op.TryLock() {
		m.op.Unlock()
		return false
	}
	return true
}

func (m *Machine) setMode(mode wifi.Mode) {
	m.mu.Lock()
	m.mode = mode
	m.mu.Unlock()
	if m.Metrics != nil {
		m.Metrics.SetMode(mode)
	}
}

// acquire takes the in-process and cross-process locks without waiting.
func (m *Machine) acquire() (func(), error) {
	if !m.op.TryLock() {
		return nil, wifi.ErrBusy
	}
	if err := os.MkdirAll(filepath.Dir(m.opts.LockPath), 0o755); err != nil {
		m.op.Unlock()
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := m.lock.TryLock()
	if err != nil {
		m.op.Unlock()
		return nil, fmt.Errorf("acquire lock %s: %w", m.opts.LockPath, err)
	}
	if !ok {
		m.op.Unlock()
		return nil, wifi.ErrBusy
	}
	return func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to release mode lock")
		}
		m.op.Unlock()
	}, nil
}

// Connect joins the network described by creds. On success the mode
// commits to client; when the attempt times out the device falls back to
// the hotspot. Both commits schedule a restart. Validation and permission
// failures leave the mode and the persisted state unchanged.
func (m *Machine) Connect(ctx context.Context, creds wifi.Credentials) Outcome {
	if err := m.conn.Validate(creds); err != nil {
		return m.rejected(creds.SSID, err)
	}
	release, err := m.acquire()
	if err != nil {
		return m.rejected(creds.SSID, err)
	}
	defer release()

	prev := m.Mode()
	m.setMode(wifi.ModeTransitioning)
	m.logger.Info().Str("from", string(prev)).Str("ssid", creds.SSID).Msg("Mode transition started")

	res := m.conn.Connect(ctx, creds)
	out := Outcome{Success: res.Success, Message: res.Message, Err: res.Err}
	if res.Log != nil {
		out.Steps = res.Log.Entries()
	}

	switch {
	case res.Success:
		if err := m.removeMarker(); err != nil {
			m.logger.Error().Err(err).Msg("Failed to clear host mode marker")
		}
		out.Mode = m.commit(ctx, prev, wifi.ModeClient, "connected", creds.SSID)
		out.RestartAt = m.restart(fmt.Sprintf("client mode: connected to %q", creds.SSID))

	case wifi.IsValidation(res.Err), wifi.IsPermission(res.Err), errors.Is(res.Err, wifi.ErrBusy):
		m.setMode(prev)
		out.Mode = prev
		m.logger.Warn().Err(res.Err).Str("mode", string(prev)).Msg("Mode transition aborted")

	default:
		m.fallback(ctx)
		out.Mode = m.commit(ctx, prev, wifi.ModeHotspot, "connection failed: "+res.Err.Error(), creds.SSID)
		out.RestartAt = m.restart("hotspot mode: connection failed")
	}
	return out
}

// ResetToHotspot forces hotspot mode and schedules a restart.
func (m *Machine) ResetToHotspot(ctx context.Context, reason string) Outcome {
	release, err := m.acquire()
	if err != nil {
		return m.rejected("", err)
	}
	defer release()

	if err := m.writeMarker(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to write host mode marker")
		return Outcome{Message: "Failed to reset to hotspot: " + err.Error(), Mode: m.Mode(), Err: err}
	}
	prev := m.Mode()
	mode := m.commit(ctx, prev, wifi.ModeHotspot, reason, "")
	return Outcome{
		Success:   true,
		Message:   "System resetting to hotspot mode...",
		Mode:      mode,
		RestartAt: m.restart("hotspot mode: " + reason),
	}
}

// Boot runs the boot-time connectivity check. With the marker present the
// hotspot is brought up. Otherwise the device stays in client mode if it
// associates within the boot check timeout, and falls back to the hotspot
// when it has no saved network or does not associate in time. The fallback
// brings the access point up directly instead of restarting.
func (m *Machine) Boot(ctx context.Context) (wifi.Mode, error) {
	release, err := m.acquire()
	if err != nil {
		return m.Mode(), err
	}
	defer release()

	if m.markerPresent() {
		m.setMode(wifi.ModeHotspot)
		m.logger.Info().Msg("Host mode marker present, starting hotspot")
		return wifi.ModeHotspot, m.hotspot.Activate(ctx, m.opts.Hotspot)
	}

	reason := ""
	if m.saved != nil {
		ssids, err := m.saved.SSIDs()
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to read saved networks")
		}
		if len(ssids) == 0 {
			reason = "no saved networks"
		}
	}
	if reason == "" {
		if st, ok := m.waitConnected(ctx); ok {
			m.setMode(wifi.ModeClient)
			m.logger.Info().Str("ssid", st.SSID).Str("ip", st.IP).Msg("Boot check passed, staying in client mode")
			return wifi.ModeClient, nil
		}
		reason = fmt.Sprintf("not connected after %s", m.opts.BootCheckTimeout)
	}

	m.logger.Warn().Str("reason", reason).Msg("Boot check failed, falling back to hotspot")
	if err := m.writeMarker(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to write host mode marker")
	}
	prev := m.Mode()
	m.setMode(wifi.ModeTransitioning)
	err = m.hotspot.Activate(ctx, m.opts.Hotspot)
	m.commit(ctx, prev, wifi.ModeHotspot, "boot check: "+reason, "")
	return wifi.ModeHotspot, err
}

// Forget removes a saved network under the mode lock. The network the
// device is associated with cannot be forgotten.
func (m *Machine) Forget(ctx context.Context, id int) (wifi.SavedNetwork, error) {
	release, err := m.acquire()
	if err != nil {
		return wifi.SavedNetwork{}, err
	}
	defer release()

	current := ""
	if st := m.status.Current(ctx); st.Mode == wifi.ModeClient && st.Connected {
		current = st.SSID
	}
	return m.conn.Forget(ctx, id, current)
}

func (m *Machine) waitConnected(ctx context.Context) (wifi.Status, bool) {
	deadline := time.Now().Add(m.opts.BootCheckTimeout)
	for {
		st := m.status.Current(ctx)
		if st.Mode == wifi.ModeClient && st.Connected {
			return st, true
		}
		if !time.Now().Before(deadline) {
			return st, false
		}
		if err := m.sleep(ctx, m.opts.PollInterval); err != nil {
			return st, false
		}
	}
}

// fallback writes the marker and brings the access point back up so the
// device stays reachable until the restart.
func (m *Machine) fallback(ctx context.Context) {
	if err := m.writeMarker(); err != nil {
		m.logger.Error().Err(err).Msg("Failed to write host mode marker")
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	if err := m.hotspot.Activate(actx, m.opts.Hotspot); err != nil {
		m.logger.Warn().Err(err).Msg("Hotspot re-activation failed, restart will retry")
	}
}

func (m *Machine) commit(ctx context.Context, from, to wifi.Mode, reason, ssid string) wifi.Mode {
	m.setMode(to)
	m.logger.Info().Str("from", string(from)).Str("to", string(to)).Str("reason", reason).Msg("Mode committed")

	if m.Journal != nil {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := m.Journal.RecordTransition(jctx, from, to, reason, ssid); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to record mode transition")
		}
	}
	return to
}

func (m *Machine) restart(reason string) time.Time {
	if m.restarter == nil {
		return time.Time{}
	}
	at, _ := m.restarter.Schedule(reason)
	return at
}

func (m *Machine) rejected(ssid string, err error) Outcome {
	msg := err.Error()
	if ssid != "" && !errors.Is(err, wifi.ErrBusy) {
		msg = fmt.Sprintf("Failed to connect to '%s': %s", ssid, err)
	}
	return Outcome{Message: msg, Mode: m.Mode(), Err: err}
}

func (m *Machine) markerPresent() bool {
	_, err := os.Stat(m.opts.MarkerPath)
	return err == nil
}

func (m *Machine) writeMarker() error {
	if err := os.MkdirAll(filepath.Dir(m.opts.MarkerPath), 0o755); err != nil {
		return markerErr(m.opts.MarkerPath, err)
	}
	if err := os.WriteFile(m.opts.MarkerPath, nil, 0o644); err != nil {
		return markerErr(m.opts.MarkerPath, err)
	}
	return nil
}

func (m *Machine) removeMarker() error {
	err := os.Remove(m.opts.MarkerPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return markerErr(m.opts.MarkerPath, err)
	}
	return nil
}

func markerErr(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &wifi.PermissionError{Op: "write", Path: path, Err: err}
	}
	return fmt.Errorf("host mode marker %s: %w", path, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
