// Package steplog records the outcome of each step of a multi-step network
// operation. Whether a failing step aborts the operation is decided by a
// single policy table rather than at each call site.
package steplog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Outcome is the result of a single step.
type Outcome string

const (
	OK      Outcome = "ok"
	Warning Outcome = "warning"
	Fatal   Outcome = "fatal"
)

// Step names an operation step.
type Step string

// Client connection steps.
const (
	BuildConfig     Step = "build_config"
	PersistConfig   Step = "persist_config"
	StopHotspot     Step = "stop_hotspot"
	InterfaceDown   Step = "interface_down"
	StopSupplicant  Step = "stop_supplicant"
	InterfaceUp     Step = "interface_up"
	StartSupplicant Step = "start_supplicant"
	StartDHCP       Step = "start_dhcp"
	Verify          Step = "verify"
	RestoreConfig   Step = "restore_config"
	ReloadConfig    Step = "reload_config"
)

// Hotspot steps.
const (
	WriteHostapd     Step = "write_hostapd"
	WriteDnsmasq     Step = "write_dnsmasq"
	ReleaseClient    Step = "release_client"
	FlushAddress     Step = "flush_address"
	AssignAddress    Step = "assign_address"
	LinkUp           Step = "link_up"
	EnableForwarding Step = "enable_forwarding"
	UnmaskHostapd    Step = "unmask_hostapd"
	StartHostapd     Step = "start_hostapd"
	StartDnsmasq     Step = "start_dnsmasq"
	StopHostapd      Step = "stop_hostapd"
	StopDnsmasq      Step = "stop_dnsmasq"
)

// Policy maps each step to whether its failure aborts the operation.
// Steps absent from the table are best-effort.
var Policy = map[Step]bool{
	BuildConfig:   true,
	PersistConfig: true,
	Verify:        true,

	WriteHostapd:  true,
	WriteDnsmasq:  true,
	AssignAddress: true,
	StartHostapd:  true,
	StartDnsmasq:  true,
}

// IsFatal reports whether a failure of step aborts the operation.
func IsFatal(step Step) bool {
	return Policy[step]
}

// Entry is one recorded step.
type Entry struct {
	Step     Step          `json:"step"`
	Outcome  Outcome       `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	err      error
}

// Err returns the error the step failed with, if any.
func (e Entry) Err() error {
	return e.err
}

// Log collects entries for one operation.
type Log struct {
	logger  zerolog.Logger
	entries []Entry
	fatal   *Entry
}

// New creates an empty log writing one line per step to logger.
func New(logger zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Run executes fn as step and records its outcome. Once a fatal outcome has
// been recorded, later steps are not run.
func (l *Log) Run(step Step, fn func() error) Outcome {
	if l.fatal != nil {
		return Fatal
	}
	start := time.Now()
	err := fn()
	return l.record(step, err, time.Since(start))
}

// Compensate runs fn as step even after a fatal outcome. It undoes work of
// earlier steps, so its own failure is only ever a warning.
func (l *Log) Compensate(step Step, fn func() error) Outcome {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	e := Entry{Step: step, Outcome: OK, Duration: d, err: err}
	if err != nil {
		e.Outcome = Warning
		e.err = &wifi.BestEffortWarning{Step: string(step), Err: err}
		e.Error = err.Error()
		l.logger.Warn().Str("step", string(step)).Dur("duration", d).Err(err).Msg("compensation failed")
	} else {
		l.logger.Debug().Str("step", string(step)).Dur("duration", d).Msg("compensation ok")
	}
	l.entries = append(l.entries, e)
	return e.Outcome
}

// Record stores the outcome of a step run elsewhere.
func (l *Log) Record(step Step, err error) Outcome {
	return l.record(step, err, 0)
}

func (l *Log) record(step Step, err error, d time.Duration) Outcome {
	e := Entry{Step: step, Outcome: OK, Duration: d, err: err}
	switch {
	case err == nil:
		l.logger.Debug().Str("step", string(step)).Dur("duration", d).Msg("step ok")
	case IsFatal(step):
		e.Outcome = Fatal
		e.Error = err.Error()
		l.logger.Error().Str("step", string(step)).Dur("duration", d).Err(err).Msg("step failed")
	default:
		e.Outcome = Warning
		e.err = &wifi.BestEffortWarning{Step: string(step), Err: err}
		e.Error = err.Error()
		l.logger.Warn().Str("step", string(step)).Dur("duration", d).Err(err).Msg("step failed, continuing")
	}
	l.entries = append(l.entries, e)
	if e.Outcome == Fatal && l.fatal == nil {
		l.fatal = &e
	}
	return e.Outcome
}

// Entries returns all recorded steps in order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Warnings returns the best-effort failures.
func (l *Log) Warnings() []error {
	var out []error
	for _, e := range l.entries {
		if e.Outcome == Warning {
			out = append(out, e.err)
		}
	}
	return out
}

// Failed returns the error of the fatal step, or nil.
func (l *Log) Failed() error {
	if l.fatal == nil {
		return nil
	}
	return l.fatal.err
}

// FailedStep returns the fatal step, or "".
func (l *Log) FailedStep() Step {
	if l.fatal == nil {
		return ""
	}
	return l.fatal.Step
}
