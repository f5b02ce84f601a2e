package wpaconf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

func TestBuildClientConfigWPA2(t *testing.T) {
	for _, pw := range []string{"12345678", "longenough1", strings.Repeat("p", 63)} {
		t.Run(pw, func(t *testing.T) {
			out, err := BuildClientConfig(wifi.Credentials{SSID: "HomeWiFi", Password: pw, Security: wifi.SecurityWPA2}, "US", Options{})
			require.NoError(t, err)

			assert.Equal(t, 1, strings.Count(out, "network={"))
			assert.Contains(t, out, "ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\n")
			assert.Contains(t, out, "update_config=1\n")
			assert.Contains(t, out, "country=US\n")
			assert.Contains(t, out, "\tssid=\"HomeWiFi\"\n")
			assert.Contains(t, out, "\tpsk=\""+pw+"\"\n")
			assert.Contains(t, out, "\tkey_mgmt=WPA-PSK\n")
			assert.Contains(t, out, "\tproto=RSN\n")
			assert.NotContains(t, out, "wep_key")
		})
	}
}

func TestBuildClientConfigRejectsShortPassword(t *testing.T) {
	out, err := BuildClientConfig(wifi.Credentials{SSID: "HomeWiFi", Password: "short", Security: wifi.SecurityWPA2}, "US", Options{})
	require.Error(t, err)
	assert.True(t, wifi.IsValidation(err))
	assert.Empty(t, out)
}

func TestBuildNetworkBlockSecurityTypes(t *testing.T) {
	tests := []struct {
		name    string
		creds   wifi.Credentials
		want    []string
		wantNot []string
	}{
		{
			name:    "open",
			creds:   wifi.Credentials{SSID: "Cafe"},
			want:    []string{"key_mgmt=NONE"},
			wantNot: []string{"psk=", "wep_key0"},
		},
		{
			name:  "wep hex",
			creds: wifi.Credentials{SSID: "Old", Password: "ABCDEF0123", Security: wifi.SecurityWEP},
			want:  []string{"key_mgmt=NONE", "wep_key0=abcdef0123\n", "wep_tx_keyidx=0"},
		},
		{
			name:  "wep ascii",
			creds: wifi.Credentials{SSID: "Old", Password: "hello", Security: wifi.SecurityWEP},
			want:  []string{"wep_key0=\"hello\""},
		},
		{
			name:    "wpa3",
			creds:   wifi.Credentials{SSID: "New", Password: "longenough1", Security: wifi.SecurityWPA3},
			want:    []string{"key_mgmt=SAE", "ieee80211w=2", "psk=\"longenough1\""},
			wantNot: []string{"WPA-PSK"},
		},
		{
			name:  "wpa",
			creds: wifi.Credentials{SSID: "Legacy", Password: "longenough1", Security: wifi.SecurityWPA},
			want:  []string{"key_mgmt=WPA-PSK", "proto=WPA\n", "pairwise=TKIP"},
		},
		{
			name:  "unspecified defaults to compatibility mode",
			creds: wifi.Credentials{SSID: "Any", Password: "longenough1"},
			want:  []string{"proto=RSN WPA", "pairwise=CCMP TKIP"},
		},
		{
			name:  "hidden",
			creds: wifi.Credentials{SSID: "Stealth", Password: "longenough1", Security: wifi.SecurityWPA2, Hidden: true},
			want:  []string{"scan_ssid=1"},
		},
		{
			name:  "quote in ssid is written as hex",
			creds: wifi.Credentials{SSID: `Bob"s`},
			want:  []string{"ssid=426f622273\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := BuildNetworkBlock(tt.creds, 3, Options{})
			require.NoError(t, err)
			assert.Contains(t, out, "priority=3")
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.wantNot {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestHashPassphrase(t *testing.T) {
	// Reference value from wpa_passphrase.
	const want = "f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e"
	assert.Equal(t, want, DerivePSK("password", "IEEE"))

	out, err := BuildNetworkBlock(wifi.Credentials{SSID: "IEEE", Password: "password", Security: wifi.SecurityWPA2}, 0, Options{HashPassphrase: true})
	require.NoError(t, err)
	assert.Contains(t, out, "psk="+want+"\n")
	assert.NotContains(t, out, `"password"`)

	// SAE keeps the passphrase.
	out, err = BuildNetworkBlock(wifi.Credentials{SSID: "IEEE", Password: "password", Security: wifi.SecurityWPA3}, 0, Options{HashPassphrase: true})
	require.NoError(t, err)
	assert.Contains(t, out, `psk="password"`)
}

func TestSSIDEncoding(t *testing.T) {
	for _, ssid := range []string{"HomeWiFi", `Bob"s`, `back\slash`, "caf\xc3\xa9", "tab\there"} {
		assert.Equal(t, ssid, DecodeSSID(EncodeSSID(ssid)), ssid)
	}
	assert.Equal(t, "Cafe\n", DecodeSSID(`P"Cafe\n"`))
	assert.Equal(t, "A B", DecodeSSID(`P"A\x20B"`))
}

const sampleConfig = `ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev
update_config=1
country=GB

network={
	ssid="HomeWiFi"
	psk="longenough1"
	key_mgmt=WPA-PSK
	priority=2
}

network={
	# added by hand
	ssid="Office"
	key_mgmt=NONE
	priority=5
	disabled=1
}
`

func TestParseAndRender(t *testing.T) {
	f, err := Parse(sampleConfig)
	require.NoError(t, err)

	require.Len(t, f.Header, 3)
	require.Len(t, f.Blocks, 2)
	assert.Equal(t, "HomeWiFi", f.Blocks[0].SSID())
	assert.Equal(t, 2, f.Blocks[0].Priority())
	assert.True(t, f.Blocks[1].Disabled())
	assert.Equal(t, 5, f.MaxPriority())

	again, err := Parse(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, again)
	assert.Contains(t, f.String(), "\t# added by hand\n")
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("network={\n\tssid=\"x\"\n")
	assert.Error(t, err)

	_, err = Parse("network={\n\tgarbage\n}\n")
	assert.Error(t, err)
}

func newTestStore(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wpa_supplicant.conf")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return NewStore(path, "GB", Options{})
}

func TestStoreUpsertAssignsHighestPriority(t *testing.T) {
	s := newTestStore(t, sampleConfig)

	_, err := s.Upsert(wifi.Credentials{SSID: "Guest", Password: "longenough1", Security: wifi.SecurityWPA2})
	require.NoError(t, err)

	saved, err := s.List()
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "Guest", saved[2].SSID)
	assert.Equal(t, 6, saved[2].Priority)
	assert.Equal(t, 2, saved[2].ID)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStoreUpsertReplacesSameSSID(t *testing.T) {
	s := newTestStore(t, sampleConfig)

	_, err := s.Upsert(wifi.Credentials{SSID: "HomeWiFi", Password: "newpassword", Security: wifi.SecurityWPA2})
	require.NoError(t, err)

	ssids, err := s.SSIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"Office", "HomeWiFi"}, ssids)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `ssid="HomeWiFi"`))
	assert.Contains(t, string(data), `psk="newpassword"`)
	assert.NotContains(t, string(data), `psk="longenough1"`)
}

func TestStoreUpsertValidationLeavesFileUntouched(t *testing.T) {
	s := newTestStore(t, sampleConfig)

	_, err := s.Upsert(wifi.Credentials{SSID: "Bad", Password: "short", Security: wifi.SecurityWPA2})
	require.Error(t, err)
	assert.True(t, wifi.IsValidation(err))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, string(data))
}

func TestStoreRestore(t *testing.T) {
	s := newTestStore(t, sampleConfig)

	snap, err := s.Upsert(wifi.Credentials{SSID: "Guest", Password: "longenough1", Security: wifi.SecurityWPA2})
	require.NoError(t, err)
	require.NoError(t, s.Restore(snap))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, string(data))

	fresh := newTestStore(t, "")
	snap, err = fresh.Upsert(wifi.Credentials{SSID: "Guest"})
	require.NoError(t, err)
	require.NoError(t, fresh.Restore(snap))
	_, err = os.Stat(fresh.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestStoreMissingFile(t *testing.T) {
	s := newTestStore(t, "")
	saved, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, saved)

	_, err = s.Upsert(wifi.Credentials{SSID: "Cafe"})
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\nupdate_config=1\ncountry=GB\n"))
	assert.Contains(t, string(data), "priority=1")
}

func TestStoreRemove(t *testing.T) {
	s := newTestStore(t, sampleConfig)

	_, err := s.Remove(0, "HomeWiFi")
	assert.ErrorIs(t, err, wifi.ErrForgetCurrent)
	saved, err := s.List()
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	_, err = s.Remove(7, "")
	assert.ErrorIs(t, err, wifi.ErrNotFound)

	removed, err := s.Remove(1, "HomeWiFi")
	require.NoError(t, err)
	assert.Equal(t, "Office", removed.SSID)

	saved, err = s.List()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "HomeWiFi", saved[0].SSID)
}

func TestStorePermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.Mkdir(dir, 0o555))
	s := NewStore(filepath.Join(dir, "wpa_supplicant.conf"), "GB", Options{})

	require.Error(t, s.CheckWritable())
	_, err := s.Upsert(wifi.Credentials{SSID: "Cafe"})
	assert.True(t, wifi.IsPermission(err))
}
