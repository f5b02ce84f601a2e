package system

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/execx"
)

// Restarter applies a committed mode by restarting the device. The first
// Schedule call arms a single timer; later calls are no-ops that report
// the time already scheduled.
type Restarter struct {
	runner   execx.Runner
	command  []string
	grace    time.Duration
	disabled bool

	// OnSchedule is called once when a restart is armed.
	OnSchedule func(reason string)

	mu      sync.Mutex
	at      time.Time
	reason  string
	timer   *time.Timer
	done    chan struct{}
	nowFunc func() time.Time
}

// NewRestarter creates a restarter running command after grace. When
// disabled the restart is logged but never executed.
func NewRestarter(runner execx.Runner, command []string, grace time.Duration, disabled bool) *Restarter {
	return &Restarter{
		runner:   runner,
		command:  command,
		grace:    grace,
		disabled: disabled,
		nowFunc:  time.Now,
	}
}

// Schedule arms the restart. It returns when the restart will happen and
// whether this call armed it.
func (r *Restarter) Schedule(reason string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.at.IsZero() {
		log.Debug().Str("reason", reason).Time("at", r.at).Msg("Restart already scheduled")
		return r.at, false
	}

	r.at = r.nowFunc().Add(r.grace)
	r.reason = reason
	done := make(chan struct{})
	r.done = done
	r.timer = time.AfterFunc(r.grace, func() {
		defer close(done)
		r.restart()
	})
	log.Warn().Str("reason", reason).Dur("in", r.grace).Msg("Device restart scheduled")
	if r.OnSchedule != nil {
		r.OnSchedule(reason)
	}
	return r.at, true
}

// Scheduled returns the pending restart time, zero when none.
func (r *Restarter) Scheduled() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.at
}

// Cancel disarms a pending restart. Used on shutdown paths where the
// process exits before the timer fires.
func (r *Restarter) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil && r.timer.Stop() {
		close(r.done)
	}
	r.timer = nil
	r.done = nil
	r.at = time.Time{}
}

// Wait blocks until a scheduled restart command has run or was cancelled.
// It returns at once when nothing is scheduled. Short-lived processes call
// it so they do not exit before the timer fires.
func (r *Restarter) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Restarter) restart() {
	r.mu.Lock()
	reason := r.reason
	r.mu.Unlock()

	if r.disabled {
		log.Warn().Str("reason", reason).Msg("Restart disabled, mode change applies on next boot")
		return
	}
	log.Warn().Str("reason", reason).Strs("cmd", r.command).Msg("Restarting device")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := r.runner.Run(ctx, r.command[0], r.command[1:]...); err != nil {
		log.Error().Err(err).Msg("Restart command failed")
	}
}
