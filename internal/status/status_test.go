package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclearlighters/wifisetup/internal/execx"
	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

const associated = `wlan0     IEEE 802.11  ESSID:"HomeWiFi"
          Mode:Managed  Frequency:2.437 GHz  Access Point: AA:BB:CC:DD:EE:01
          Bit Rate=72.2 Mb/s   Tx-Power=31 dBm
          Retry short limit:7   RTS thr:off   Fragment thr:off
          Power Management:on
          Link Quality=56/70  Signal level=-54 dBm
`

const notAssociated = `wlan0     IEEE 802.11  ESSID:off/any
          Mode:Managed  Access Point: Not-Associated   Tx-Power=31 dBm
          Retry short limit:7   RTS thr:off   Fragment thr:off
          Power Management:on
`

func inactiveHostapd() *execx.Fake {
	return execx.NewFake().On("systemctl is-active hostapd", "inactive\n", &execx.CommandError{ExitCode: 3})
}

func TestParseIwconfig(t *testing.T) {
	l := ParseIwconfig(associated)
	assert.True(t, l.Associated)
	assert.Equal(t, "HomeWiFi", l.SSID)
	assert.Equal(t, "2.437 GHz", l.Frequency)
	assert.True(t, l.HasSignal)
	assert.Equal(t, 80, l.SignalPercent)

	assert.False(t, ParseIwconfig(notAssociated).Associated)
	assert.False(t, ParseIwconfig("").Associated)

	dbmOnly := "wlan0  ESSID:\"X\"\n Access Point: 00:11:22:33:44:55\n Signal level=-70 dBm\n"
	l = ParseIwconfig(dbmOnly)
	assert.Equal(t, 60, l.SignalPercent)
}

func TestCurrentHotspot(t *testing.T) {
	fake := execx.NewFake().On("systemctl is-active hostapd", "active\n", nil)
	r := New("wlan0", fake, "Radio-Setup", "192.168.4.1")

	st := r.Current(context.Background())
	assert.Equal(t, wifi.ModeHotspot, st.Mode)
	assert.True(t, st.Connected)
	assert.Equal(t, "Radio-Setup", st.SSID)
	assert.Equal(t, "192.168.4.1", st.IP)
	assert.False(t, fake.Called("iwconfig"))
}

func TestCurrentClientConnected(t *testing.T) {
	fake := inactiveHostapd().On("iwconfig wlan0", associated, nil)
	r := New("wlan0", fake, "Radio-Setup", "192.168.4.1")
	r.Addr = func(context.Context, string) string { return "192.168.1.50" }

	st := r.Current(context.Background())
	assert.Equal(t, wifi.ModeClient, st.Mode)
	assert.True(t, st.Connected)
	assert.Equal(t, "HomeWiFi", st.SSID)
	assert.Equal(t, "192.168.1.50", st.IP)
	require.NotNil(t, st.SignalPercent)
	assert.Equal(t, 80, *st.SignalPercent)
	assert.Equal(t, "wlan0", st.Interface)
}

func TestCurrentDegradesOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fake *execx.Fake
	}{
		{"not associated", inactiveHostapd().On("iwconfig", notAssociated, nil)},
		{"iwconfig missing", inactiveHostapd().On("iwconfig", "", &execx.CommandError{ExitCode: 127})},
		{"garbage", inactiveHostapd().On("iwconfig", "no wireless extensions.", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("wlan0", tt.fake, "Radio-Setup", "192.168.4.1")
			r.Addr = func(context.Context, string) string { return "10.0.0.2" }

			st := r.Current(context.Background())
			assert.Equal(t, wifi.ModeClient, st.Mode)
			assert.False(t, st.Connected)
			assert.Empty(t, st.SSID)
			assert.Empty(t, st.IP)
			assert.Nil(t, st.SignalPercent)
		})
	}
}
