package wifi

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBMToPercent(t *testing.T) {
	tests := []struct {
		dbm  int
		want int
	}{
		{-30, 100},
		{-50, 100},
		{-60, 80},
		{-75, 50},
		{-100, 0},
		{-110, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d dBm", tt.dbm), func(t *testing.T) {
			assert.Equal(t, tt.want, DBMToPercent(tt.dbm))
		})
	}
}

func TestQualityToPercent(t *testing.T) {
	assert.Equal(t, 80, QualityToPercent(56, 70))
	assert.Equal(t, 100, QualityToPercent(70, 70))
	assert.Equal(t, 0, QualityToPercent(10, 0))
}

func TestFrequencyHelpers(t *testing.T) {
	assert.Equal(t, Band24GHz, BandForFrequency(2437))
	assert.Equal(t, Band5GHz, BandForFrequency(5180))
	assert.Equal(t, Band(""), BandForFrequency(6115))

	assert.Equal(t, 6, ChannelForFrequency(2437))
	assert.Equal(t, 14, ChannelForFrequency(2484))
	assert.Equal(t, 36, ChannelForFrequency(5180))
	assert.Equal(t, 0, ChannelForFrequency(900))
}

func TestParseSecurity(t *testing.T) {
	tests := []struct {
		in      string
		want    Security
		wantErr bool
	}{
		{"", "", false},
		{"wpa2", SecurityWPA2, false},
		{"WPA3", SecurityWPA3, false},
		{"open", SecurityOpen, false},
		{"wpa/wpa2", SecurityWPAMixed, false},
		{"wep", SecurityWEP, false},
		{"enterprise", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSecurity(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveSecurity(t *testing.T) {
	assert.Equal(t, SecurityOpen, Credentials{SSID: "a"}.EffectiveSecurity())
	assert.Equal(t, SecurityWPAMixed, Credentials{SSID: "a", Password: "longenough1"}.EffectiveSecurity())
	assert.Equal(t, SecurityWPA3, Credentials{SSID: "a", Password: "x", Security: SecurityWPA3}.EffectiveSecurity())
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
		field string
	}{
		{"valid wpa2", Credentials{SSID: "HomeWiFi", Password: "longenough1", Security: SecurityWPA2}, ""},
		{"valid open", Credentials{SSID: "Cafe"}, ""},
		{"valid wep ascii", Credentials{SSID: "Old", Password: "abcde", Security: SecurityWEP}, ""},
		{"valid wep hex", Credentials{SSID: "Old", Password: "0123456789", Security: SecurityWEP}, ""},
		{"empty ssid", Credentials{Password: "longenough1"}, "ssid"},
		{"long ssid", Credentials{SSID: strings.Repeat("s", 33)}, "ssid"},
		{"short password", Credentials{SSID: "HomeWiFi", Password: "short", Security: SecurityWPA2}, "password"},
		{"long password", Credentials{SSID: "HomeWiFi", Password: strings.Repeat("p", 64), Security: SecurityWPA2}, "password"},
		{"non printable password", Credentials{SSID: "HomeWiFi", Password: "longenough\n", Security: SecurityWPA}, "password"},
		{"password on open", Credentials{SSID: "Cafe", Password: "longenough1", Security: SecurityOpen}, "password"},
		{"bad wep", Credentials{SSID: "Old", Password: "abc", Security: SecurityWEP}, "password"},
		{"unknown security", Credentials{SSID: "X", Password: "longenough1", Security: "EAP"}, "security"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestWEPKey(t *testing.T) {
	v, hex, ok := WEPKey("ABCDEF0123")
	assert.True(t, ok)
	assert.True(t, hex)
	assert.Equal(t, "abcdef0123", v)

	// Five hex digits are a valid ASCII key, not a raw key.
	v, hex, ok = WEPKey("12345")
	assert.True(t, ok)
	assert.False(t, hex)
	assert.Equal(t, "12345", v)

	_, _, ok = WEPKey("1234567")
	assert.False(t, ok)
}

func TestCredentialsStringHidesPassword(t *testing.T) {
	c := Credentials{SSID: "HomeWiFi", Password: "supersecret", Security: SecurityWPA2}
	assert.NotContains(t, c.String(), "supersecret")
	assert.NotContains(t, fmt.Sprintf("%v", c), "supersecret")
}

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("connect: %w", &TimeoutError{SSID: "x", Attempts: 3})
	assert.True(t, IsTimeout(wrapped))
	assert.False(t, IsPermission(wrapped))

	perm := &PermissionError{Op: "write", Path: "/etc/x", Err: fmt.Errorf("denied")}
	assert.True(t, IsPermission(fmt.Errorf("persist: %w", perm)))
	assert.Contains(t, perm.Error(), "/etc/x")

	assert.True(t, IsWarning(&BestEffortWarning{Step: "stop_hotspot", Err: fmt.Errorf("x")}))
	assert.True(t, IsScan(&ScanError{Interface: "wlan0", Err: fmt.Errorf("down")}))
}

func TestSecurityStronger(t *testing.T) {
	assert.True(t, SecurityWPA3.Stronger(SecurityWPA2))
	assert.True(t, SecurityWPA2.Stronger(SecurityWPA))
	assert.True(t, SecurityWEP.Stronger(SecurityOpen))
	assert.False(t, SecurityOpen.Stronger(SecurityWEP))
}
