// Package scanner enumerates nearby wireless networks.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// SavedLister lists the SSIDs of saved client networks.
type SavedLister interface {
	SSIDs() ([]string, error)
}

// StatusSource reports the live interface status.
type StatusSource interface {
	Current(ctx context.Context) wifi.Status
}

// Recorder receives scan measurements.
type Recorder interface {
	ObserveScan(result string, d time.Duration)
}

// LinkState reports whether an interface exists and is administratively up.
type LinkState func(ctx context.Context, name string) (found, up bool, err error)

// Scanner runs radio scans on one interface.
type Scanner struct {
	iface  string
	runner execx.Runner
	saved  SavedLister
	status StatusSource

	// Link defaults to a gopsutil interface lookup.
	Link LinkState
	// Metrics is optional.
	Metrics Recorder
	// Guard, when set, backs off after repeated radio failures.
	Guard *Guard

	mu     sync.Mutex
	last   []wifi.Network
	lastAt time.Time
}

// New creates a scanner. saved and status may be nil.
func New(iface string, runner execx.Runner, saved SavedLister, status StatusSource) *Scanner {
	return &Scanner{
		iface:  iface,
		runner: runner,
		saved:  saved,
		status: status,
		Link:   SystemLinkState,
	}
}

// SystemLinkState looks the interface up with gopsutil.
func SystemLinkState(ctx context.Context, name string) (bool, bool, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return false, false, err
	}
	for _, i := range ifaces {
		if i.Name == name {
			return true, slices.Contains(i.Flags, "up"), nil
		}
	}
	return false, false, nil
}

// Scan triggers a scan and returns the visible networks, one entry per
// SSID, strongest first.
func (s *Scanner) Scan(ctx context.Context) ([]wifi.Network, error) {
	start := time.Now()
	networks, err := s.scan(ctx)
	s.observe(err, time.Since(start))
	if err != nil {
		log.Warn().Err(err).Str("interface", s.iface).Msg("Scan failed")
		return nil, err
	}

	s.mu.Lock()
	s.last = networks
	s.lastAt = time.Now()
	s.mu.Unlock()

	log.Info().Int("networks", len(networks)).Dur("duration", time.Since(start)).Msg("Scan completed")
	return clone(networks), nil
}

func (s *Scanner) scan(ctx context.Context) ([]wifi.Network, error) {
	if s.Link != nil {
		found, up, err := s.Link(ctx, s.iface)
		switch {
		case err != nil:
			return nil, &wifi.ScanError{Interface: s.iface, Err: fmt.Errorf("lookup interface: %w", err)}
		case !found:
			return nil, &wifi.ScanError{Interface: s.iface, Err: errors.New("interface not found")}
		case !up:
			return nil, &wifi.ScanError{Interface: s.iface, Err: errors.New("interface is down")}
		}
	}

	var out []byte
	run := func() error {
		var err error
		out, err = s.runner.Run(ctx, "iwlist", s.iface, "scan")
		if err != nil && strings.Contains(string(out), "No scan results") {
			out, err = nil, nil
		}
		return err
	}
	var err error
	if s.Guard != nil {
		err = s.Guard.Do(run)
	} else {
		err = run()
	}
	if err != nil {
		return nil, &wifi.ScanError{Interface: s.iface, Err: err}
	}

	networks := Dedupe(ParseIwlist(string(out)))
	if networks == nil {
		networks = []wifi.Network{}
	}
	s.mark(ctx, networks)
	return networks, nil
}

func (s *Scanner) mark(ctx context.Context, networks []wifi.Network) {
	saved := map[string]bool{}
	if s.saved != nil {
		ssids, err := s.saved.SSIDs()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read saved networks for scan")
		}
		for _, ssid := range ssids {
			saved[ssid] = true
		}
	}

	current := ""
	if s.status != nil {
		if st := s.status.Current(ctx); st.Mode == wifi.ModeClient && st.Connected {
			current = st.SSID
		}
	}

	for i := range networks {
		networks[i].IsSaved = saved[networks[i].SSID]
		networks[i].IsCurrent = current != "" && networks[i].SSID == current
	}
}

func (s *Scanner) observe(err error, d time.Duration) {
	if s.Metrics == nil {
		return
	}
	result := "success"
	switch {
	case errors.Is(err, ErrBackoff):
		result = "skipped"
	case err != nil:
		result = "error"
	}
	s.Metrics.ObserveScan(result, d)
}

// Last returns the result of the most recent successful scan and when it
// was taken.
func (s *Scanner) Last() ([]wifi.Network, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.last), s.lastAt
}

func clone(n []wifi.Network) []wifi.Network {
	if n == nil {
		return []wifi.Network{}
	}
	out := make([]wifi.Network, len(n))
	copy(out, n)
	return out
}
