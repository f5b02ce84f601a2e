// Package config provides application configuration from environment variables.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix shared by every environment variable read by Settings.
const EnvPrefix = "WIFISETUP"

// Settings holds all application configuration.
type Settings struct {
	// Application metadata
	Version  string `envconfig:"VERSION" default:"0.1.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// API server settings
	APIHost string `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort int    `envconfig:"API_PORT" default:"8000"`

	// Database settings
	DatabasePath     string        `envconfig:"DATABASE_PATH" default:"/var/lib/wifisetup/wifisetup.db"`
	HistoryRetention time.Duration `envconfig:"HISTORY_RETENTION" default:"720h"`

	// Auth settings. An empty AdminPassword leaves the API open, which is
	// the expected state on first boot.
	JWTSecret         string        `envconfig:"JWT_SECRET" default:""`
	AccessTokenExpiry time.Duration `envconfig:"ACCESS_TOKEN_EXPIRY" default:"15m"`
	AdminPassword     string        `envconfig:"ADMIN_PASSWORD" default:""`

	// Wireless interface
	Interface string `envconfig:"INTERFACE" default:"wlan0"`

	// System config file paths
	HostapdConf       string `envconfig:"HOSTAPD_CONF" default:"/etc/hostapd/hostapd.conf"`
	DnsmasqConf       string `envconfig:"DNSMASQ_CONF" default:"/etc/dnsmasq.d/090_wifisetup.conf"`
	DnsmasqLeases     string `envconfig:"DNSMASQ_LEASES" default:"/var/lib/misc/dnsmasq.leases"`
	WPASupplicantConf string `envconfig:"WPA_SUPPLICANT_CONF" default:"/etc/wpa_supplicant/wpa_supplicant.conf"`
	HotspotConfigFile string `envconfig:"HOTSPOT_CONFIG_FILE" default:"/etc/wifisetup/hotspot.toml"`
	HostModeFile      string `envconfig:"HOST_MODE_FILE" default:"/etc/wifisetup/host_mode"`
	LockFile          string `envconfig:"LOCK_FILE" default:"/run/wifisetup.lock"`

	// Hotspot defaults, overridable by HotspotConfigFile
	HotspotSSID     string `envconfig:"HOTSPOT_SSID" default:"Radio-Setup"`
	HotspotPassword string `envconfig:"HOTSPOT_PASSWORD" default:""`
	HotspotChannel  int    `envconfig:"HOTSPOT_CHANNEL" default:"6"`
	APIP            string `envconfig:"AP_IP" default:"192.168.4.1"`
	APPrefixLen     int    `envconfig:"AP_PREFIX_LEN" default:"24"`
	DHCPRangeStart  string `envconfig:"DHCP_RANGE_START" default:"192.168.4.10"`
	DHCPRangeEnd    string `envconfig:"DHCP_RANGE_END" default:"192.168.4.100"`
	DHCPLeaseTime   string `envconfig:"DHCP_LEASE_TIME" default:"12h"`
	CountryCode     string `envconfig:"COUNTRY_CODE" default:"US"`

	// Upstream resolvers handed to dnsmasq
	DNSServers []string `envconfig:"DNS_SERVERS" default:"1.1.1.1,8.8.8.8"`

	// Client connection
	DHCPClient     []string `envconfig:"DHCP_CLIENT" default:"dhclient"`
	HashPassphrase bool     `envconfig:"HASH_PASSPHRASE" default:"false"`

	// Command execution
	UseSudo        bool          `envconfig:"USE_SUDO" default:"false"`
	CommandTimeout time.Duration `envconfig:"COMMAND_TIMEOUT" default:"30s"`

	// Timeouts
	SettleDelay        time.Duration `envconfig:"SETTLE_DELAY" default:"2s"`
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"2s"`
	MaxVerifyAttempts  int           `envconfig:"MAX_VERIFY_ATTEMPTS" default:"20"`
	ProgressResetDelay time.Duration `envconfig:"PROGRESS_RESET_DELAY" default:"10s"`
	BootCheckTimeout   time.Duration `envconfig:"BOOT_CHECK_TIMEOUT" default:"60s"`

	// Scan backoff after repeated radio failures
	ScanFailureThreshold int           `envconfig:"SCAN_FAILURE_THRESHOLD" default:"3"`
	ScanBackoff          time.Duration `envconfig:"SCAN_BACKOFF" default:"30s"`

	// Restart
	RebootGrace   time.Duration `envconfig:"REBOOT_GRACE" default:"3s"`
	RebootCommand []string      `envconfig:"REBOOT_COMMAND" default:"systemctl,reboot"`
	DisableReboot bool          `envconfig:"DISABLE_REBOOT" default:"false"`

	// Monitoring
	MetricsEnabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// ListenAddr returns the address string for the HTTP server to bind to.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.APIHost, s.APIPort)
}

// VerifyBudget is the longest time a connection attempt may spend waiting
// for association.
func (s *Settings) VerifyBudget() time.Duration {
	return time.Duration(s.MaxVerifyAttempts) * s.PollInterval
}

// Validate checks values envconfig cannot express as tags.
func (s *Settings) Validate() error {
	if s.Interface == "" {
		return fmt.Errorf("INTERFACE must not be empty")
	}
	if s.MaxVerifyAttempts < 1 {
		return fmt.Errorf("MAX_VERIFY_ATTEMPTS must be at least 1, got %d", s.MaxVerifyAttempts)
	}
	if s.RebootGrace < 0 || s.RebootGrace > 5*time.Second {
		return fmt.Errorf("REBOOT_GRACE must be between 0 and 5s, got %s", s.RebootGrace)
	}
	if len(s.DHCPClient) == 0 {
		return fmt.Errorf("DHCP_CLIENT must name a command")
	}
	if len(s.RebootCommand) == 0 {
		return fmt.Errorf("REBOOT_COMMAND must name a command")
	}
	return nil
}

var (
	cfg  *Settings
	once sync.Once
)

// Get returns the singleton Settings instance.
func Get() *Settings {
	once.Do(func() {
		s, err := Load()
		if err != nil {
			panic(err.Error())
		}
		cfg = s
	})
	return cfg
}

// Load creates a new Settings instance from environment variables.
func Load() (*Settings, error) {
	s := &Settings{}
	if err := envconfig.Process(EnvPrefix, s); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}
