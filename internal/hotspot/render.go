package hotspot

import (
	"fmt"
	"net"
	"strings"

	"github.com/nuclearlighters/wifisetup/internal/config"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Validate checks a hotspot configuration before anything is written.
func Validate(hc config.HotspotConfig) error {
	if hc.Interface == "" {
		return &wifi.ValidationError{Field: "interface", Reason: "must not be empty"}
	}
	if hc.SSID == "" || len(hc.SSID) > wifi.MaxSSIDLen {
		return &wifi.ValidationError{Field: "ssid", Reason: fmt.Sprintf("must be 1-%d bytes", wifi.MaxSSIDLen)}
	}
	if strings.ContainsAny(hc.SSID, "\n\r") {
		return &wifi.ValidationError{Field: "ssid", Reason: "must not contain line breaks"}
	}
	if hc.Password != "" && (len(hc.Password) < wifi.MinPassphraseLen || len(hc.Password) > wifi.MaxPassphraseLen) {
		return &wifi.ValidationError{Field: "password", Reason: fmt.Sprintf("must be empty or %d-%d characters", wifi.MinPassphraseLen, wifi.MaxPassphraseLen)}
	}
	if strings.ContainsAny(hc.Password, "\n\r") {
		return &wifi.ValidationError{Field: "password", Reason: "must not contain line breaks"}
	}
	switch hc.Channel {
	case 1, 6, 11:
	default:
		return &wifi.ValidationError{Field: "channel", Reason: fmt.Sprintf("must be 1, 6 or 11, got %d", hc.Channel)}
	}
	if net.ParseIP(hc.IP).To4() == nil {
		return &wifi.ValidationError{Field: "ip", Reason: fmt.Sprintf("%q is not an IPv4 address", hc.IP)}
	}
	if hc.PrefixLen < 8 || hc.PrefixLen > 30 {
		return &wifi.ValidationError{Field: "prefix_len", Reason: fmt.Sprintf("must be 8-30, got %d", hc.PrefixLen)}
	}
	_, subnet, _ := net.ParseCIDR(hc.CIDR())
	for field, v := range map[string]string{"dhcp_start": hc.DHCPStart, "dhcp_end": hc.DHCPEnd} {
		ip := net.ParseIP(v)
		if ip.To4() == nil || !subnet.Contains(ip) {
			return &wifi.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not inside %s", v, subnet)}
		}
	}
	return nil
}

// RenderHostapd produces hostapd.conf for the access point.
func RenderHostapd(hc config.HotspotConfig) string {
	lines := []string{
		fmt.Sprintf("interface=%s", hc.Interface),
		"driver=nl80211",
		fmt.Sprintf("ssid=%s", hc.SSID),
		"hw_mode=g",
		fmt.Sprintf("channel=%d", hc.Channel),
	}
	if hc.CountryCode != "" {
		lines = append(lines, fmt.Sprintf("country_code=%s", hc.CountryCode))
	}
	lines = append(lines,
		"ieee80211n=1",
		"wmm_enabled=1",
		"macaddr_acl=0",
		"auth_algs=1",
		"ignore_broadcast_ssid=0",
	)

	if !hc.Open() {
		lines = append(lines,
			"wpa=2",
			"wpa_key_mgmt=WPA-PSK",
			fmt.Sprintf("wpa_passphrase=%s", hc.Password),
			"rsn_pairwise=CCMP",
		)
	}

	return strings.Join(lines, "\n") + "\n"
}

// RenderDnsmasq produces the dnsmasq drop-in serving DHCP and DNS on the
// access point.
func RenderDnsmasq(hc config.HotspotConfig) string {
	mask := net.IP(net.CIDRMask(hc.PrefixLen, 32)).String()
	lines := []string{
		fmt.Sprintf("interface=%s", hc.Interface),
		"bind-interfaces",
		fmt.Sprintf("dhcp-range=%s,%s,%s,%s", hc.DHCPStart, hc.DHCPEnd, mask, hc.LeaseTime),
		fmt.Sprintf("dhcp-option=3,%s", hc.IP),
		fmt.Sprintf("dhcp-option=6,%s", hc.IP),
		// Friendly name for the setup page.
		fmt.Sprintf("address=/wifisetup.local/%s", hc.IP),
		"domain-needed",
		"bogus-priv",
	}
	if len(hc.DNSServers) > 0 {
		lines = append(lines, "no-resolv")
		for _, s := range hc.DNSServers {
			lines = append(lines, fmt.Sprintf("server=%s", s))
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
