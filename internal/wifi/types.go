// Package wifi defines the domain types shared by the scanner, the client
// configuration builder, the hotspot manager and the mode state machine.
package wifi

import (
	"fmt"
	"strings"
	"time"
)

// Security is the protection scheme of a wireless network.
type Security string

const (
	SecurityOpen     Security = "Open"
	SecurityWEP      Security = "WEP"
	SecurityWPA      Security = "WPA"
	SecurityWPA2     Security = "WPA2"
	SecurityWPA3     Security = "WPA3"
	SecurityWPAMixed Security = "WPA/WPA2"
)

// ParseSecurity maps user input onto a Security value. Matching is case
// insensitive and an empty string yields "" (auto-detect).
func ParseSecurity(s string) (Security, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "OPEN", "NONE":
		return SecurityOpen, nil
	case "WEP":
		return SecurityWEP, nil
	case "WPA":
		return SecurityWPA, nil
	case "WPA2":
		return SecurityWPA2, nil
	case "WPA3", "SAE":
		return SecurityWPA3, nil
	case "WPA/WPA2", "WPA-WPA2", "WPA_WPA2", "MIXED":
		return SecurityWPAMixed, nil
	}
	return "", &ValidationError{Field: "security", Reason: fmt.Sprintf("unknown security type %q", s)}
}

// PSKFamily reports whether s authenticates with a WPA passphrase.
func (s Security) PSKFamily() bool {
	switch s {
	case SecurityWPA, SecurityWPA2, SecurityWPA3, SecurityWPAMixed:
		return true
	}
	return false
}

// rank orders security types for display; stronger protection ranks higher.
func (s Security) rank() int {
	switch s {
	case SecurityWPA3:
		return 5
	case SecurityWPA2:
		return 4
	case SecurityWPAMixed:
		return 3
	case SecurityWPA:
		return 2
	case SecurityWEP:
		return 1
	}
	return 0
}

// Stronger reports whether s offers stronger protection than other.
func (s Security) Stronger(other Security) bool {
	return s.rank() > other.rank()
}

// Band is a frequency band label.
type Band string

const (
	Band24GHz Band = "2.4GHz"
	Band5GHz  Band = "5GHz"
)

// Network is one access point seen during a scan.
type Network struct {
	SSID          string   `json:"ssid"`
	BSSID         string   `json:"bssid,omitempty"`
	SignalPercent int      `json:"signal"`
	Band          Band     `json:"frequency,omitempty"`
	Channel       int      `json:"channel,omitempty"`
	Security      Security `json:"security"`
	IsSaved       bool     `json:"saved"`
	IsCurrent     bool     `json:"current"`
}

// Credentials are the user-supplied parameters for joining a network.
// The password is never logged or returned by the API.
type Credentials struct {
	SSID     string   `json:"ssid"`
	Password string   `json:"password,omitempty"`
	Security Security `json:"security,omitempty"`
	Hidden   bool     `json:"hidden,omitempty"`
}

// String hides the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{SSID:%q Security:%s Hidden:%t}", c.SSID, c.EffectiveSecurity(), c.Hidden)
}

// EffectiveSecurity resolves an unspecified security type: open without a
// password, WPA/WPA2 compatibility mode with one.
func (c Credentials) EffectiveSecurity() Security {
	if c.Security != "" {
		return c.Security
	}
	if c.Password == "" {
		return SecurityOpen
	}
	return SecurityWPAMixed
}

// SavedNetwork is a network block persisted in the client configuration.
type SavedNetwork struct {
	ID       int    `json:"id"`
	SSID     string `json:"ssid"`
	Priority int    `json:"priority"`
	Current  bool   `json:"current"`
	Disabled bool   `json:"disabled"`
}

// Mode is the operating mode of the wireless interface.
type Mode string

const (
	ModeHotspot       Mode = "hotspot"
	ModeClient        Mode = "client"
	ModeTransitioning Mode = "transitioning"
)

// Status describes what the interface is doing right now.
type Status struct {
	Interface     string `json:"interface"`
	Mode          Mode   `json:"mode"`
	Connected     bool   `json:"connected"`
	SSID          string `json:"ssid,omitempty"`
	IP            string `json:"ip,omitempty"`
	SignalPercent *int   `json:"signal,omitempty"`
	Frequency     string `json:"frequency,omitempty"`
}

// AttemptStatus is the lifecycle state of a connection attempt.
type AttemptStatus string

const (
	AttemptIdle       AttemptStatus = "idle"
	AttemptConnecting AttemptStatus = "connecting"
	AttemptVerifying  AttemptStatus = "verifying"
	AttemptSuccess    AttemptStatus = "success"
	AttemptFailed     AttemptStatus = "failed"
)

// Done reports whether the attempt reached a final state.
func (s AttemptStatus) Done() bool {
	return s == AttemptSuccess || s == AttemptFailed
}

// ConnectionAttempt is the progress of the in-flight (or last) attempt.
type ConnectionAttempt struct {
	ID          string        `json:"id,omitempty"`
	SSID        string        `json:"ssid,omitempty"`
	Status      AttemptStatus `json:"status"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Message     string        `json:"message,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
}
