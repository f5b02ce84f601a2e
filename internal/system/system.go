// Package system provides device information and the restart control plane.
package system

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// Info describes the device the service runs on.
type Info struct {
	Hostname     string    `json:"hostname"`
	OSName       string    `json:"os_name,omitempty"`
	OSVersion    string    `json:"os_version,omitempty"`
	Kernel       string    `json:"kernel,omitempty"`
	Architecture string    `json:"architecture"`
	PiModel      string    `json:"pi_model,omitempty"`
	UptimeSecs   uint64    `json:"uptime_seconds"`
	UptimeHuman  string    `json:"uptime_human"`
	BootTime     time.Time `json:"boot_time"`
}

// GetInfo collects host information. Fields that cannot be read stay empty.
func GetInfo(ctx context.Context) *Info {
	info := &Info{Architecture: runtime.GOARCH}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.OSName = hi.Platform
		info.OSVersion = hi.PlatformVersion
		info.Kernel = hi.KernelVersion
		info.UptimeSecs = hi.Uptime
		info.UptimeHuman = formatUptime(hi.Uptime)
		info.BootTime = time.Unix(int64(hi.BootTime), 0)
	}

	info.PiModel = readFileString("/sys/firmware/devicetree/base/model")
	return info
}

// Uptime returns the host uptime, zero when unknown.
func Uptime(ctx context.Context) time.Duration {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// formatUptime converts seconds to human-readable format (e.g., "2d 5h 30m 15s")
func formatUptime(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", secs))

	return strings.Join(parts, " ")
}

// readFileString reads a file and returns its contents as a trimmed string.
// Returns empty string on error (e.g. the devicetree node on non-Pi hosts).
func readFileString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\x00", ""))
}
