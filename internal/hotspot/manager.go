// Package hotspot brings the configuration access point up and down.
package hotspot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/steplog"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Manager owns hostapd, dnsmasq and the static address of the access point.
type Manager struct {
	runner      execx.Runner
	iface       string
	hostapdConf string
	dnsmasqConf string
	leasesPath  string
	logger      zerolog.Logger
}

// NewManager creates a hotspot manager.
func NewManager(runner execx.Runner, iface, hostapdConf, dnsmasqConf, leasesPath string) *Manager {
	return &Manager{
		runner:      runner,
		iface:       iface,
		hostapdConf: hostapdConf,
		dnsmasqConf: dnsmasqConf,
		leasesPath:  leasesPath,
		logger:      log.With().Str("component", "hotspot").Logger(),
	}
}

// IsActive reports whether hostapd is running.
func (m *Manager) IsActive(ctx context.Context) bool {
	out, err := m.runner.Run(ctx, "systemctl", "is-active", "hostapd")
	return err == nil && strings.TrimSpace(string(out)) == "active"
}

// Activate writes the daemon configuration and starts the access point.
// Configuration files are fully written before any daemon is restarted and
// dnsmasq only starts once the interface carries its static address.
func (m *Manager) Activate(ctx context.Context, hc config.HotspotConfig) error {
	_, err := m.activate(ctx, hc)
	return err
}

func (m *Manager) activate(ctx context.Context, hc config.HotspotConfig) (*steplog.Log, error) {
	if err := Validate(hc); err != nil {
		return nil, err
	}
	l := steplog.New(m.logger.With().Str("op", "activate").Logger())

	l.Run(steplog.WriteHostapd, func() error {
		return writeConfig(m.hostapdConf, RenderHostapd(hc), 0o600)
	})
	l.Run(steplog.WriteDnsmasq, func() error {
		return writeConfig(m.dnsmasqConf, RenderDnsmasq(hc), 0o644)
	})
	l.Run(steplog.ReleaseClient, func() error {
		return ignoreNotRunning(m.run(ctx, "killall", "wpa_supplicant"))
	})
	l.Run(steplog.FlushAddress, func() error {
		return m.run(ctx, "ip", "addr", "flush", "dev", hc.Interface)
	})
	l.Run(steplog.AssignAddress, func() error {
		return m.run(ctx, "ip", "addr", "add", hc.CIDR(), "dev", hc.Interface)
	})
	l.Run(steplog.LinkUp, func() error {
		return m.run(ctx, "ip", "link", "set", hc.Interface, "up")
	})
	l.Run(steplog.EnableForwarding, func() error {
		return m.run(ctx, "sysctl", "-w", "net.ipv4.ip_forward=1")
	})
	// Raspberry Pi OS ships hostapd masked.
	l.Run(steplog.UnmaskHostapd, func() error {
		return m.run(ctx, "systemctl", "unmask", "hostapd")
	})
	l.Run(steplog.StartHostapd, func() error {
		return m.run(ctx, "systemctl", "restart", "hostapd")
	})
	l.Run(steplog.StartDnsmasq, func() error {
		return m.run(ctx, "systemctl", "restart", "dnsmasq")
	})

	if err := l.Failed(); err != nil {
		return l, fmt.Errorf("activate hotspot: %s: %w", l.FailedStep(), err)
	}
	m.logger.Info().
		Str("ssid", hc.SSID).
		Str("address", hc.CIDR()).
		Int("channel", hc.Channel).
		Int("warnings", len(l.Warnings())).
		Msg("Hotspot active")
	return l, nil
}

// Deactivate stops the access point. Every step is best-effort; the
// returned log lists what could not be done.
func (m *Manager) Deactivate(ctx context.Context) *steplog.Log {
	l := steplog.New(m.logger.With().Str("op", "deactivate").Logger())

	l.Run(steplog.StopHostapd, func() error {
		return m.run(ctx, "systemctl", "stop", "hostapd")
	})
	l.Run(steplog.StopDnsmasq, func() error {
		return m.run(ctx, "systemctl", "stop", "dnsmasq")
	})
	l.Run(steplog.FlushAddress, func() error {
		return m.run(ctx, "ip", "addr", "flush", "dev", m.iface)
	})

	m.logger.Info().Int("warnings", len(l.Warnings())).Msg("Hotspot stopped")
	return l
}

func (m *Manager) run(ctx context.Context, name string, args ...string) error {
	_, err := m.runner.Run(ctx, name, args...)
	if err != nil && execx.IsPermissionDenied(err) {
		return &wifi.PermissionError{Op: name + " " + strings.Join(args, " "), Err: err}
	}
	return err
}

// killall exits 1 when no process matched.
func ignoreNotRunning(err error) error {
	if execx.ExitCode(err) == 1 {
		return nil
	}
	return err
}

func writeConfig(path, content string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return wrapWrite(path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return wrapWrite(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return wrapWrite(path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return wrapWrite(path, err)
	}
	if err := tmp.Close(); err != nil {
		return wrapWrite(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return wrapWrite(path, err)
	}
	return nil
}

func wrapWrite(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &wifi.PermissionError{Op: "write", Path: path, Err: err}
	}
	return fmt.Errorf("write %s: %w", path, err)
}
