// Package execx runs the system tools (ip, iwlist, systemctl, wpa_supplicant)
// the device is driven with.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Runner executes an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError describes a command that failed to start or exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s: timed out", e.Command)
	case e.Stderr != "":
		return fmt.Sprintf("%s: exit %d: %s", e.Command, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// PermissionDenied reports whether the failure looks like missing privileges.
func (e *CommandError) PermissionDenied() bool {
	if errors.Is(e.Err, os.ErrPermission) || e.ExitCode == 126 {
		return true
	}
	s := strings.ToLower(e.Stderr)
	return strings.Contains(s, "operation not permitted") ||
		strings.Contains(s, "permission denied") ||
		strings.Contains(s, "must be root")
}

// IsPermissionDenied reports whether err is a CommandError caused by
// missing privileges.
func IsPermissionDenied(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.PermissionDenied()
}

// ExitCode returns the exit status carried by err, or -1.
func ExitCode(err error) int {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}
	return -1
}

// System runs commands on the host.
type System struct {
	// Timeout bounds every command. Zero means no bound beyond ctx.
	Timeout time.Duration
	// Sudo prefixes every command with "sudo -n".
	Sudo bool
}

// NewSystem creates a host runner.
func NewSystem(timeout time.Duration, sudo bool) *System {
	return &System{Timeout: timeout, Sudo: sudo}
}

// Run executes the command and returns stdout.
func (s *System) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	argv := append([]string{name}, args...)
	if s.Sudo {
		argv = append([]string{"sudo", "-n"}, argv...)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	line := strings.Join(argv, " ")

	log.Debug().
		Str("cmd", line).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("command")

	if err == nil {
		return stdout.Bytes(), nil
	}

	ce := &CommandError{
		Command:  line,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ce.ExitCode = exitErr.ExitCode()
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ce.TimedOut = true
	}
	return stdout.Bytes(), ce
}
