package wifi

import (
	"errors"
	"fmt"
	"time"
)

// ErrBusy is returned when a mode transition or connection attempt is
// already running.
var ErrBusy = errors.New("another network operation is in progress")

// ErrNotFound is returned for unknown saved network ids.
var ErrNotFound = errors.New("network not found")

// ErrForgetCurrent is returned when asked to forget the network the
// device is connected to.
var ErrForgetCurrent = errors.New("cannot forget currently connected network, connect to another network first")

// ValidationError is a malformed input. Nothing was changed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermissionError means the service lacks the privileges to write a
// configuration file or run a privileged command.
type PermissionError struct {
	Op   string
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("permission denied: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("permission denied: %s: %v", e.Op, e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// TimeoutError means the interface never associated within the
// verification budget.
type TimeoutError struct {
	SSID     string
	Attempts int
	Waited   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("connection to %q not verified after %d checks (%s)", e.SSID, e.Attempts, e.Waited)
}

// BestEffortWarning records a non-fatal step failure. The operation
// continued past it.
type BestEffortWarning struct {
	Step string
	Err  error
}

func (e *BestEffortWarning) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *BestEffortWarning) Unwrap() error {
	return e.Err
}

// ScanError means the radio could not be scanned.
type ScanError struct {
	Interface string
	Err       error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Interface, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPermission returns true if the error is a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsTimeout returns true if the error is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsWarning returns true if the error is a BestEffortWarning.
func IsWarning(err error) bool {
	var we *BestEffortWarning
	return errors.As(err, &we)
}

// IsScan returns true if the error is a ScanError.
func IsScan(err error) bool {
	var se *ScanError
	return errors.As(err, &se)
}
