package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// HotspotConfig describes the configuration access point.
type HotspotConfig struct {
	Interface   string   `toml:"interface" json:"interface"`
	SSID        string   `toml:"ssid" json:"ssid"`
	Password    string   `toml:"password" json:"password,omitempty"`
	Channel     int      `toml:"channel" json:"channel"`
	CountryCode string   `toml:"country_code" json:"country_code"`
	IP          string   `toml:"ip" json:"ip"`
	PrefixLen   int      `toml:"prefix_len" json:"prefix_len"`
	DHCPStart   string   `toml:"dhcp_start" json:"dhcp_start"`
	DHCPEnd     string   `toml:"dhcp_end" json:"dhcp_end"`
	LeaseTime   string   `toml:"lease_time" json:"lease_time"`
	DNSServers  []string `toml:"dns_servers" json:"dns_servers"`
}

// Open reports whether the hotspot runs without a passphrase.
func (h HotspotConfig) Open() bool {
	return h.Password == ""
}

// CIDR returns the access point address with its prefix length.
func (h HotspotConfig) CIDR() string {
	return fmt.Sprintf("%s/%d", h.IP, h.PrefixLen)
}

// Redacted returns a copy safe to hand to API clients.
func (h HotspotConfig) Redacted() HotspotConfig {
	if h.Password != "" {
		h.Password = "********"
	}
	return h
}

// DefaultHotspot builds the hotspot configuration from environment settings.
func (s *Settings) DefaultHotspot() HotspotConfig {
	dns := make([]string, len(s.DNSServers))
	copy(dns, s.DNSServers)
	return HotspotConfig{
		Interface:   s.Interface,
		SSID:        s.HotspotSSID,
		Password:    s.HotspotPassword,
		Channel:     s.HotspotChannel,
		CountryCode: s.CountryCode,
		IP:          s.APIP,
		PrefixLen:   s.APPrefixLen,
		DHCPStart:   s.DHCPRangeStart,
		DHCPEnd:     s.DHCPRangeEnd,
		LeaseTime:   s.DHCPLeaseTime,
		DNSServers:  dns,
	}
}

// LoadHotspot returns the default hotspot configuration overlaid with the
// values found in HotspotConfigFile. A missing file is not an error.
func (s *Settings) LoadHotspot() (HotspotConfig, error) {
	hc := s.DefaultHotspot()

	data, err := os.ReadFile(s.HotspotConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return hc, nil
	}
	if err != nil {
		return hc, fmt.Errorf("read hotspot config: %w", err)
	}

	if err := DecodeHotspot(data, &hc); err != nil {
		return s.DefaultHotspot(), fmt.Errorf("parse %s: %w", s.HotspotConfigFile, err)
	}
	// The radio is not configurable from the file.
	hc.Interface = s.Interface
	return hc, nil
}

// DecodeHotspot overlays TOML data onto hc. Keys absent from data keep
// their current value; unknown keys are rejected.
func DecodeHotspot(data []byte, hc *HotspotConfig) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(hc)
}
