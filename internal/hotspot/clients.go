package hotspot

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Client is a station associated with the access point.
type Client struct {
	MACAddress    string     `json:"mac_address"`
	IPAddress     string     `json:"ip_address,omitempty"`
	Hostname      string     `json:"hostname,omitempty"`
	SignalPercent *int       `json:"signal,omitempty"`
	LeaseExpiry   *time.Time `json:"lease_expiry,omitempty"`
}

// Lease is one dnsmasq DHCP lease.
type Lease struct {
	MACAddress string
	IPAddress  string
	Hostname   string
	Expiry     *time.Time
}

var macRe = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)

// Clients lists the phones and laptops joined to the access point. Station
// data from hostapd is enriched with DHCP leases; when hostapd reports no
// stations the leases alone are used.
func (m *Manager) Clients(ctx context.Context) []Client {
	var clients []Client
	if out, err := m.runner.Run(ctx, "hostapd_cli", "-i", m.iface, "all_sta"); err == nil {
		clients = ParseStations(string(out))
	}

	leases := m.Leases()
	byMAC := make(map[string]Lease, len(leases))
	for _, l := range leases {
		byMAC[strings.ToLower(l.MACAddress)] = l
	}

	if len(clients) == 0 {
		for _, l := range leases {
			clients = append(clients, Client{MACAddress: l.MACAddress, IPAddress: l.IPAddress, Hostname: l.Hostname, LeaseExpiry: l.Expiry})
		}
		return clients
	}
	for i := range clients {
		if l, ok := byMAC[strings.ToLower(clients[i].MACAddress)]; ok {
			clients[i].IPAddress = l.IPAddress
			clients[i].Hostname = l.Hostname
			clients[i].LeaseExpiry = l.Expiry
		}
	}
	return clients
}

// Leases reads the dnsmasq lease file. A missing file yields no leases.
func (m *Manager) Leases() []Lease {
	data, err := os.ReadFile(m.leasesPath)
	if err != nil {
		return nil
	}
	return ParseLeases(string(data))
}

// ParseLeases parses dnsmasq lease lines: expiry mac ip hostname client-id.
func ParseLeases(data string) []Lease {
	var leases []Lease
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) < 4 {
			continue
		}
		l := Lease{MACAddress: parts[1], IPAddress: parts[2]}
		if parts[3] != "*" {
			l.Hostname = parts[3]
		}
		if ts, err := strconv.ParseInt(parts[0], 10, 64); err == nil && ts > 0 {
			exp := time.Unix(ts, 0)
			l.Expiry = &exp
		}
		leases = append(leases, l)
	}
	return leases
}

// ParseStations parses `hostapd_cli all_sta` output.
func ParseStations(out string) []Client {
	var clients []Client
	var cur *Client

	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if macRe.MatchString(line) {
			if cur != nil {
				clients = append(clients, *cur)
			}
			cur = &Client{MACAddress: line}
			continue
		}
		if cur == nil {
			continue
		}
		if key, value, ok := strings.Cut(line, "="); ok && key == "signal" {
			if dbm, err := strconv.Atoi(value); err == nil {
				pct := wifi.DBMToPercent(dbm)
				cur.SignalPercent = &pct
			}
		}
	}
	if cur != nil {
		clients = append(clients, *cur)
	}
	return clients
}
