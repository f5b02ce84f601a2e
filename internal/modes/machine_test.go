package modes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/journal"
	"github.com/nuclearlighters/wifisetup/internal/orchestrator"
	"github.com/nuclearlighters/wifisetup/internal/steplog"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

type fakeConnector struct {
	validateErr error
	result      orchestrator.Result
	block       chan struct{}
	entered     chan struct{}
	connects    int
	forgotten   []int
	protected   string
}

func (f *fakeConnector) Validate(wifi.Credentials) error { return f.validateErr }

func (f *fakeConnector) Connect(ctx context.Context, creds wifi.Credentials) orchestrator.Result {
	f.connects++
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	res := f.result
	if res.Log == nil {
		res.Log = steplog.New(zerolog.Nop())
	}
	return res
}

func (f *fakeConnector) Forget(_ context.Context, id int, current string) (wifi.SavedNetwork, error) {
	f.protected = current
	if current == "HomeWiFi" && id == 0 {
		return wifi.SavedNetwork{}, wifi.ErrForgetCurrent
	}
	f.forgotten = append(f.forgotten, id)
	return wifi.SavedNetwork{ID: id}, nil
}

type fakeHotspot struct {
	activations int
	err         error
}

func (h *fakeHotspot) Activate(context.Context, config.HotspotConfig) error {
	h.activations++
	return h.err
}

type fakeRestarter struct {
	mu      sync.Mutex
	reasons []string
}

func (r *fakeRestarter) Schedule(reason string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	return time.Now().Add(3 * time.Second), len(r.reasons) == 1
}

type fakeStatus struct {
	st wifi.Status
}

func (s *fakeStatus) Current(context.Context) wifi.Status { return s.st }

type fakeSaved []string

func (f fakeSaved) SSIDs() ([]string, error) { return f, nil }

type fakeJournal struct {
	transitions []journal.Transition
}

func (j *fakeJournal) RecordTransition(_ context.Context, from, to wifi.Mode, reason, ssid string) (journal.Transition, error) {
	t := journal.Transition{From: from, To: to, Reason: reason, SSID: ssid}
	j.transitions = append(j.transitions, t)
	return t, nil
}

type fixture struct {
	conn      *fakeConnector
	hotspot   *fakeHotspot
	restarter *fakeRestarter
	status    *fakeStatus
	journal   *fakeJournal
	opts      Options
}

func newFixture(t *testing.T, marker bool) (*fixture, *Machine) {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		conn:      &fakeConnector{},
		hotspot:   &fakeHotspot{},
		restarter: &fakeRestarter{},
		status:    &fakeStatus{st: wifi.Status{Interface: "wlan0", Mode: wifi.ModeHotspot, Connected: true}},
		journal:   &fakeJournal{},
		opts: Options{
			MarkerPath:       filepath.Join(dir, "etc", "host_mode"),
			LockPath:         filepath.Join(dir, "run", "wifisetup.lock"),
			BootCheckTimeout: 50 * time.Millisecond,
			PollInterval:     time.Millisecond,
		},
	}
	if marker {
		require.NoError(t, os.MkdirAll(filepath.Dir(f.opts.MarkerPath), 0o755))
		require.NoError(t, os.WriteFile(f.opts.MarkerPath, nil, 0o644))
	}
	m := New(f.conn, f.hotspot, f.restarter, f.status, fakeSaved{"HomeWiFi"}, f.opts)
	m.Journal = f.journal
	m.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return f, m
}

func markerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var homeWiFi = wifi.Credentials{SSID: "HomeWiFi", Password: "longenough1", Security: wifi.SecurityWPA2}

func TestInitialModeFromMarker(t *testing.T) {
	_, m := newFixture(t, true)
	assert.Equal(t, wifi.ModeHotspot, m.Mode())

	_, m = newFixture(t, false)
	assert.Equal(t, wifi.ModeClient, m.Mode())
}

func TestConnectSuccessCommitsClient(t *testing.T) {
	f, m := newFixture(t, true)
	f.conn.result = orchestrator.Result{Success: true, Message: "Connected to 'HomeWiFi'"}

	out := m.Connect(context.Background(), homeWiFi)

	require.True(t, out.Success)
	assert.Equal(t, wifi.ModeClient, out.Mode)
	assert.Equal(t, wifi.ModeClient, m.Mode())
	assert.False(t, markerExists(f.opts.MarkerPath))
	assert.WithinDuration(t, time.Now(), out.RestartAt, 5*time.Second)
	require.Len(t, f.restarter.reasons, 1)
	require.Len(t, f.journal.transitions, 1)
	assert.Equal(t, wifi.ModeHotspot, f.journal.transitions[0].From)
	assert.Equal(t, wifi.ModeClient, f.journal.transitions[0].To)
}

func TestConnectTimeoutFallsBackToHotspot(t *testing.T) {
	f, m := newFixture(t, true)
	f.conn.result = orchestrator.Result{
		Message: orchestrator.TimeoutMessage,
		Err:     &wifi.TimeoutError{SSID: "HomeWiFi", Attempts: 20, Waited: 40 * time.Second},
	}

	out := m.Connect(context.Background(), homeWiFi)

	assert.False(t, out.Success)
	assert.Equal(t, orchestrator.TimeoutMessage, out.Message)
	assert.Equal(t, wifi.ModeHotspot, m.Mode())
	assert.True(t, markerExists(f.opts.MarkerPath))
	assert.Equal(t, 1, f.hotspot.activations)
	assert.False(t, out.RestartAt.IsZero())
	require.Len(t, f.restarter.reasons, 1)
}

func TestConnectTimeoutFromClientWritesMarker(t *testing.T) {
	f, m := newFixture(t, false)
	f.conn.result = orchestrator.Result{Err: &wifi.TimeoutError{SSID: "HomeWiFi"}}

	m.Connect(context.Background(), homeWiFi)

	assert.Equal(t, wifi.ModeHotspot, m.Mode())
	assert.True(t, markerExists(f.opts.MarkerPath))
}

func TestConnectValidationTouchesNothing(t *testing.T) {
	f, m := newFixture(t, true)
	f.conn.validateErr = &wifi.ValidationError{Field: "password", Reason: "must be 8 to 63 characters"}

	out := m.Connect(context.Background(), homeWiFi)

	assert.True(t, wifi.IsValidation(out.Err))
	assert.Equal(t, wifi.ModeHotspot, out.Mode)
	assert.Zero(t, f.conn.connects)
	assert.True(t, markerExists(f.opts.MarkerPath))
	assert.Empty(t, f.restarter.reasons)
	assert.Empty(t, f.journal.transitions)
}

func TestConnectPermissionRevertsMode(t *testing.T) {
	f, m := newFixture(t, true)
	f.conn.result = orchestrator.Result{Err: &wifi.PermissionError{Op: "write", Path: "/etc/wpa_supplicant/wpa_supplicant.conf", Err: os.ErrPermission}}

	out := m.Connect(context.Background(), homeWiFi)

	assert.True(t, wifi.IsPermission(out.Err))
	assert.Equal(t, wifi.ModeHotspot, m.Mode())
	assert.True(t, markerExists(f.opts.MarkerPath))
	assert.Empty(t, f.restarter.reasons)
	assert.Zero(t, f.hotspot.activations)
}

func TestConcurrentConnectRejected(t *testing.T) {
	f, m := newFixture(t, true)
	f.conn.block = make(chan struct{})
	f.conn.entered = make(chan struct{})
	f.conn.result = orchestrator.Result{Success: true}

	done := make(chan Outcome)
	go func() { done <- m.Connect(context.Background(), homeWiFi) }()
	<-f.conn.entered

	assert.Equal(t, wifi.ModeTransitioning, m.Mode())
	assert.True(t, m.Busy())

	out := m.Connect(context.Background(), wifi.Credentials{SSID: "Other", Password: "password123"})
	assert.ErrorIs(t, out.Err, wifi.ErrBusy)

	reset := m.ResetToHotspot(context.Background(), "button")
	assert.ErrorIs(t, reset.Err, wifi.ErrBusy)

	close(f.conn.block)
	first := <-done
	assert.True(t, first.Success)
	assert.Equal(t, 1, f.conn.connects)
	assert.False(t, m.Busy())
}

func TestLockFileExcludesOtherProcess(t *testing.T) {
	f, m := newFixture(t, false)
	other := flock.New(f.opts.LockPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.opts.LockPath), 0o755))
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer other.Unlock()

	out := m.ResetToHotspot(context.Background(), "cli")

	assert.ErrorIs(t, out.Err, wifi.ErrBusy)
	assert.False(t, markerExists(f.opts.MarkerPath))
}

func TestResetToHotspot(t *testing.T) {
	f, m := newFixture(t, false)

	out := m.ResetToHotspot(context.Background(), "reset requested")

	require.True(t, out.Success)
	assert.Equal(t, wifi.ModeHotspot, m.Mode())
	assert.True(t, markerExists(f.opts.MarkerPath))
	assert.Equal(t, []string{"hotspot mode: reset requested"}, f.restarter.reasons)
	require.Len(t, f.journal.transitions, 1)
	assert.Equal(t, "reset requested", f.journal.transitions[0].Reason)
}

func TestBootWithMarkerStartsHotspot(t *testing.T) {
	f, m := newFixture(t, true)

	mode, err := m.Boot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, wifi.ModeHotspot, mode)
	assert.Equal(t, 1, f.hotspot.activations)
	assert.Empty(t, f.restarter.reasons)
}

func TestBootConnectedStaysClient(t *testing.T) {
	f, m := newFixture(t, false)
	f.status.st = wifi.Status{Interface: "wlan0", Mode: wifi.ModeClient, Connected: true, SSID: "HomeWiFi"}

	mode, err := m.Boot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, wifi.ModeClient, mode)
	assert.Zero(t, f.hotspot.activations)
	assert.Empty(t, f.journal.transitions)
	assert.False(t, markerExists(f.opts.MarkerPath))
}

func TestBootNotConnectedFallsBack(t *testing.T) {
	f, m := newFixture(t, false)
	f.status.st = wifi.Status{Interface: "wlan0", Mode: wifi.ModeClient}

	mode, err := m.Boot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, wifi.ModeHotspot, mode)
	assert.Equal(t, wifi.ModeHotspot, m.Mode())
	assert.True(t, markerExists(f.opts.MarkerPath))
	assert.Equal(t, 1, f.hotspot.activations)
	require.Len(t, f.journal.transitions, 1)
	assert.Contains(t, f.journal.transitions[0].Reason, "not connected")
}

func TestBootWithoutSavedNetworks(t *testing.T) {
	f, _ := newFixture(t, false)
	m := New(f.conn, f.hotspot, f.restarter, f.status, fakeSaved{}, f.opts)
	f.status.st = wifi.Status{Interface: "wlan0", Mode: wifi.ModeClient, Connected: true, SSID: "Stale"}

	mode, err := m.Boot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, wifi.ModeHotspot, mode)
	assert.Equal(t, 1, f.hotspot.activations)
}

func TestBootHotspotFailureIsReturned(t *testing.T) {
	f, m := newFixture(t, true)
	f.hotspot.err = errors.New("activate hotspot: start_hostapd: exit 1")

	mode, err := m.Boot(context.Background())

	assert.Error(t, err)
	assert.Equal(t, wifi.ModeHotspot, mode)
}

func TestForgetProtectsCurrentNetwork(t *testing.T) {
	f, m := newFixture(t, false)
	f.status.st = wifi.Status{Interface: "wlan0", Mode: wifi.ModeClient, Connected: true, SSID: "HomeWiFi"}

	_, err := m.Forget(context.Background(), 0)
	assert.ErrorIs(t, err, wifi.ErrForgetCurrent)
	assert.Equal(t, "HomeWiFi", f.conn.protected)

	_, err = m.Forget(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, f.conn.forgotten)
}

func TestForgetInHotspotModeProtectsNothing(t *testing.T) {
	f, m := newFixture(t, true)

	_, err := m.Forget(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, f.conn.protected)
}
