// Package status reports what the wireless interface is doing.
package status

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// AddrLookup returns the IPv4 address assigned to an interface, or "".
type AddrLookup func(ctx context.Context, iface string) string

// Reporter derives the live status from system probes. It never fails:
// probe errors degrade to a disconnected status.
type Reporter struct {
	iface       string
	runner      execx.Runner
	hotspotSSID string
	apIP        string

	// Addr defaults to a gopsutil interface lookup.
	Addr AddrLookup
}

// New creates a reporter for iface. hotspotSSID and apIP are reported
// while the access point is up.
func New(iface string, runner execx.Runner, hotspotSSID, apIP string) *Reporter {
	return &Reporter{
		iface:       iface,
		runner:      runner,
		hotspotSSID: hotspotSSID,
		apIP:        apIP,
		Addr:        SystemAddr,
	}
}

// SystemAddr looks up the first IPv4 address of iface with gopsutil.
func SystemAddr(ctx context.Context, iface string) string {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Interface lookup failed")
		return ""
	}
	for _, i := range ifaces {
		if i.Name != iface {
			continue
		}
		for _, a := range i.Addrs {
			ip, _, _ := strings.Cut(a.Addr, "/")
			if strings.Contains(ip, ".") {
				return ip
			}
		}
	}
	return ""
}

// HotspotActive reports whether hostapd is running.
func (r *Reporter) HotspotActive(ctx context.Context) bool {
	out, err := r.runner.Run(ctx, "systemctl", "is-active", "hostapd")
	return err == nil && strings.TrimSpace(string(out)) == "active"
}

// Current returns the live status of the interface.
func (r *Reporter) Current(ctx context.Context) wifi.Status {
	st := wifi.Status{Interface: r.iface, Mode: wifi.ModeClient}

	if r.HotspotActive(ctx) {
		st.Mode = wifi.ModeHotspot
		st.Connected = true
		st.SSID = r.hotspotSSID
		st.IP = r.apIP
		return st
	}

	out, err := r.runner.Run(ctx, "iwconfig", r.iface)
	if err != nil {
		log.Debug().Err(err).Str("interface", r.iface).Msg("iwconfig failed")
		return st
	}

	link := ParseIwconfig(string(out))
	if !link.Associated {
		return st
	}
	st.Connected = true
	st.SSID = link.SSID
	st.Frequency = link.Frequency
	if link.HasSignal {
		sig := link.SignalPercent
		st.SignalPercent = &sig
	}
	if r.Addr != nil {
		st.IP = r.Addr(ctx, r.iface)
	}
	return st
}

// Link is the association state parsed from iwconfig.
type Link struct {
	Associated    bool
	SSID          string
	Frequency     string
	SignalPercent int
	HasSignal     bool
}

var (
	essidRe   = regexp.MustCompile(`ESSID:"([^"]*)"`)
	freqRe    = regexp.MustCompile(`Frequency[:=]([\d.]+ GHz)`)
	apRe      = regexp.MustCompile(`Access Point:\s*(\S+)`)
	linkQRe   = regexp.MustCompile(`Link Quality[:=](\d+)/(\d+)`)
	levelDBRe = regexp.MustCompile(`Signal level[:=](-?\d+)\s*dBm`)
)

// ParseIwconfig reads the output of `iwconfig <iface>`.
func ParseIwconfig(out string) Link {
	var l Link

	if m := apRe.FindStringSubmatch(out); m == nil || m[1] == "Not-Associated" {
		return l
	}
	m := essidRe.FindStringSubmatch(out)
	if m == nil || m[1] == "" {
		return l
	}
	l.Associated = true
	l.SSID = m[1]

	if m := freqRe.FindStringSubmatch(out); m != nil {
		l.Frequency = m[1]
	}
	if m := linkQRe.FindStringSubmatch(out); m != nil {
		cur, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		l.SignalPercent = wifi.QualityToPercent(cur, total)
		l.HasSignal = true
	} else if m := levelDBRe.FindStringSubmatch(out); m != nil {
		dbm, _ := strconv.Atoi(m[1])
		l.SignalPercent = wifi.DBMToPercent(dbm)
		l.HasSignal = true
	}
	return l
}
