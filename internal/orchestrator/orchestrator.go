// Package orchestrator joins a client network: it persists the network
// block, tears the access point down, restarts the client daemons and
// verifies the association.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/journal"
	"github.com/nuclearlighters/wifisetup/internal/steplog"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
	"github.com/nuclearlighters/wifisetup/internal/wpaconf"
)

// TimeoutMessage is reported when the interface never associated.
const TimeoutMessage = "Connection timeout - network may be out of range or password incorrect"

// StatusSource reports the live interface status.
type StatusSource interface {
	Current(ctx context.Context) wifi.Status
}

// Hotspot stops the access point before the client daemons start.
type Hotspot interface {
	Deactivate(ctx context.Context) *steplog.Log
}

// AttemptRecorder persists finished attempts.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a journal.Attempt) (journal.Attempt, error)
}

// Recorder receives connection measurements.
type Recorder interface {
	ObserveConnect(result string, d time.Duration)
}

// Options tune the connection sequence.
type Options struct {
	Interface string
	// DHCPClient is the command that obtains a lease; the interface name is
	// appended.
	DHCPClient         []string
	SettleDelay        time.Duration
	PollInterval       time.Duration
	MaxAttempts        int
	ProgressResetDelay time.Duration
	Config             wpaconf.Options
}

// Result is the outcome of one Connect call.
type Result struct {
	Success bool
	Message string
	Err     error
	Log     *steplog.Log
}

// Connector runs connection attempts. At most one runs at a time.
type Connector struct {
	runner  execx.Runner
	store   *wpaconf.Store
	status  StatusSource
	hotspot Hotspot
	opts    Options
	logger  zerolog.Logger

	// Journal and Metrics are optional.
	Journal AttemptRecorder
	Metrics Recorder

	inflight atomic.Bool

	mu         sync.Mutex
	progress   wifi.ConnectionAttempt
	resetTimer *time.Timer

	sleep   func(ctx context.Context, d time.Duration) error
	nowFunc func() time.Time
}

// New creates a connector.
func New(runner execx.Runner, store *wpaconf.Store, status StatusSource, hotspot Hotspot, opts Options) *Connector {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if len(opts.DHCPClient) == 0 {
		opts.DHCPClient = []string{"dhclient"}
	}
	return &Connector{
		runner:   runner,
		store:    store,
		status:   status,
		hotspot:  hotspot,
		opts:     opts,
		logger:   log.With().Str("component", "orchestrator").Logger(),
		progress: wifi.ConnectionAttempt{Status: wifi.AttemptIdle, MaxAttempts: opts.MaxAttempts},
		sleep:    sleepContext,
		nowFunc:  time.Now,
	}
}

// Validate checks creds without touching the system.
func (c *Connector) Validate(creds wifi.Credentials) error {
	_, err := wpaconf.BuildNetworkBlock(creds, 0, c.opts.Config)
	return err
}

// Busy reports whether an attempt is running.
func (c *Connector) Busy() bool {
	return c.inflight.Load()
}

// Attempt returns the progress of the running or last attempt.
func (c *Connector) Attempt() wifi.ConnectionAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.progress
	if p.StartedAt != nil {
		t := *p.StartedAt
		p.StartedAt = &t
	}
	return p
}

// Verifying reports whether the running attempt is polling for association.
func (c *Connector) Verifying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress.Status == wifi.AttemptVerifying
}

// Connect joins the network described by creds. It never returns an error;
// failures are carried in the Result. A call made while another attempt is
// running returns wifi.ErrBusy without running any command.
func (c *Connector) Connect(ctx context.Context, creds wifi.Credentials) Result {
	if !c.inflight.CompareAndSwap(false, true) {
		return Result{Message: wifi.ErrBusy.Error(), Err: wifi.ErrBusy}
	}
	defer c.inflight.Store(false)

	start := c.nowFunc()
	id := uuid.NewString()
	logger := c.logger.With().Str("attempt", id).Str("ssid", creds.SSID).Logger()
	c.begin(id, creds.SSID, start)

	l := steplog.New(logger)
	var snap wpaconf.Snapshot

	l.Run(steplog.BuildConfig, func() error {
		return c.Validate(creds)
	})
	l.Run(steplog.PersistConfig, func() error {
		var err error
		snap, err = c.store.Upsert(creds)
		return err
	})
	l.Run(steplog.StopHotspot, func() error {
		if c.hotspot == nil {
			return nil
		}
		return errors.Join(c.hotspot.Deactivate(ctx).Warnings()...)
	})
	l.Run(steplog.InterfaceDown, func() error {
		return c.run(ctx, "ip", "link", "set", c.opts.Interface, "down")
	})
	c.settle(ctx, l)
	l.Run(steplog.StopSupplicant, func() error {
		err := c.run(ctx, "killall", "wpa_supplicant")
		if execx.ExitCode(err) == 1 {
			return nil
		}
		return err
	})
	c.settle(ctx, l)
	l.Run(steplog.InterfaceUp, func() error {
		return c.run(ctx, "ip", "link", "set", c.opts.Interface, "up")
	})
	l.Run(steplog.StartSupplicant, func() error {
		return c.run(ctx, "wpa_supplicant", "-B", "-i", c.opts.Interface, "-c", c.store.Path())
	})
	c.settle(ctx, l)
	l.Run(steplog.StartDHCP, func() error {
		args := append(append([]string{}, c.opts.DHCPClient[1:]...), c.opts.Interface)
		return c.run(ctx, c.opts.DHCPClient[0], args...)
	})
	l.Run(steplog.Verify, func() error {
		return c.verify(ctx, creds.SSID)
	})

	err := l.Failed()
	if wifi.IsTimeout(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		l.Compensate(steplog.RestoreConfig, func() error {
			return c.store.Restore(snap)
		})
	}

	res := Result{Success: err == nil, Err: err, Log: l}
	switch {
	case err == nil:
		res.Message = fmt.Sprintf("Connected to '%s'", creds.SSID)
	case wifi.IsTimeout(err):
		res.Message = TimeoutMessage
	default:
		res.Message = fmt.Sprintf("Failed to connect to '%s': %s", creds.SSID, err)
	}

	c.finish(ctx, id, creds, res, start)
	return res
}

// verify polls the status reporter until the interface is associated with
// ssid or the attempts run out.
func (c *Connector) verify(ctx context.Context, ssid string) error {
	c.update(func(p *wifi.ConnectionAttempt) {
		p.Status = wifi.AttemptVerifying
		p.Message = "Waiting for connection"
	})

	started := c.nowFunc()
	for i := 1; i <= c.opts.MaxAttempts; i++ {
		c.update(func(p *wifi.ConnectionAttempt) { p.Attempt = i })

		st := c.status.Current(ctx)
		if st.Mode == wifi.ModeClient && st.Connected && st.SSID == ssid {
			c.logger.Info().Str("ssid", ssid).Str("ip", st.IP).Int("checks", i).Msg("Connection verified")
			return nil
		}
		if i == c.opts.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			return err
		}
	}
	return &wifi.TimeoutError{SSID: ssid, Attempts: c.opts.MaxAttempts, Waited: c.nowFunc().Sub(started)}
}

// settle pauses between daemon restarts unless the attempt already failed.
func (c *Connector) settle(ctx context.Context, l *steplog.Log) {
	if l.Failed() != nil {
		return
	}
	_ = c.sleep(ctx, c.opts.SettleDelay)
}

func (c *Connector) run(ctx context.Context, name string, args ...string) error {
	_, err := c.runner.Run(ctx, name, args...)
	if err != nil && execx.IsPermissionDenied(err) {
		return &wifi.PermissionError{Op: name + " " + strings.Join(args, " "), Err: err}
	}
	return err
}

func (c *Connector) begin(id, ssid string, start time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
	c.progress = wifi.ConnectionAttempt{
		ID:          id,
		SSID:        ssid,
		Status:      wifi.AttemptConnecting,
		MaxAttempts: c.opts.MaxAttempts,
		Message:     "Applying configuration",
		StartedAt:   &start,
	}
}

func (c *Connector) update(fn func(p *wifi.ConnectionAttempt)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.progress)
}

func (c *Connector) finish(ctx context.Context, id string, creds wifi.Credentials, res Result, start time.Time) {
	status := wifi.AttemptSuccess
	if !res.Success {
		status = wifi.AttemptFailed
	}

	c.mu.Lock()
	c.progress.Status = status
	c.progress.Message = res.Message
	checks := c.progress.Attempt
	if c.opts.ProgressResetDelay > 0 {
		c.resetTimer = time.AfterFunc(c.opts.ProgressResetDelay, func() { c.resetProgress(id) })
	}
	c.mu.Unlock()

	elapsed := c.nowFunc().Sub(start)
	if c.Metrics != nil {
		c.Metrics.ObserveConnect(resultLabel(res.Err), elapsed)
	}

	warnings := len(res.Log.Warnings())
	event := c.logger.Info()
	if !res.Success {
		event = c.logger.Warn().Err(res.Err).Str("failed_step", string(res.Log.FailedStep()))
	}
	event.Str("ssid", creds.SSID).Dur("elapsed", elapsed).Int("warnings", warnings).Msg(res.Message)

	if c.Journal == nil {
		return
	}
	// Journal writes must not be cut short by a cancelled request.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_, err := c.Journal.RecordAttempt(jctx, journal.Attempt{
		ID:         id,
		SSID:       creds.SSID,
		Security:   creds.EffectiveSecurity(),
		Status:     status,
		Checks:     checks,
		Warnings:   warnings,
		Message:    res.Message,
		StartedAt:  start,
		FinishedAt: start.Add(elapsed),
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to record connection attempt")
	}
}

func (c *Connector) resetProgress(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress.ID != id {
		return
	}
	c.progress = wifi.ConnectionAttempt{Status: wifi.AttemptIdle, MaxAttempts: c.opts.MaxAttempts}
	c.resetTimer = nil
}

// Forget removes the saved network with id, refusing to remove
// currentSSID, and asks a running supplicant to reload its configuration.
func (c *Connector) Forget(ctx context.Context, id int, currentSSID string) (wifi.SavedNetwork, error) {
	removed, err := c.store.Remove(id, currentSSID)
	if err != nil {
		return wifi.SavedNetwork{}, err
	}

	l := steplog.New(c.logger.With().Str("op", "forget").Logger())
	l.Run(steplog.ReloadConfig, func() error {
		return c.run(ctx, "wpa_cli", "-i", c.opts.Interface, "reconfigure")
	})
	return removed, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, wifi.ErrBusy):
		return "busy"
	case wifi.IsValidation(err):
		return "invalid"
	case wifi.IsPermission(err):
		return "permission"
	case wifi.IsTimeout(err):
		return "timeout"
	}
	return "error"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
