package execx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandErrorPermissionDenied(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want bool
	}{
		{"exit 126", &CommandError{ExitCode: 126}, true},
		{"os permission", &CommandError{ExitCode: -1, Err: os.ErrPermission}, true},
		{"stderr not permitted", &CommandError{ExitCode: 2, Stderr: "RTNETLINK answers: Operation not permitted"}, true},
		{"stderr must be root", &CommandError{ExitCode: 1, Stderr: "iwlist: You must be root"}, true},
		{"plain failure", &CommandError{ExitCode: 1, Stderr: "No such device"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.PermissionDenied())
			assert.Equal(t, tt.want, IsPermissionDenied(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, ExitCode(&CommandError{ExitCode: 3}))
	assert.Equal(t, -1, ExitCode(errors.New("other")))
}

func TestFakeMatchesMostRecentRule(t *testing.T) {
	f := NewFake().
		On("systemctl is-active", "inactive\n", &CommandError{ExitCode: 3}).
		On("systemctl is-active hostapd", "active\n", nil)

	out, err := f.Run(context.Background(), "systemctl", "is-active", "hostapd")
	require.NoError(t, err)
	assert.Equal(t, "active\n", string(out))

	out, err = f.Run(context.Background(), "systemctl", "is-active", "dnsmasq")
	require.Error(t, err)
	assert.Equal(t, "inactive\n", string(out))

	out, err = f.Run(context.Background(), "ip", "link", "set", "wlan0", "up")
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, []string{
		"systemctl is-active hostapd",
		"systemctl is-active dnsmasq",
		"ip link set wlan0 up",
	}, f.Calls())
	assert.True(t, f.Called("ip link"))
	assert.Equal(t, 1, f.Index("systemctl is-active dnsmasq"))
	assert.Equal(t, -1, f.Index("reboot"))
}

func TestFakeCancelledContext(t *testing.T) {
	f := NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Run(ctx, "iwlist", "wlan0", "scan")
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.Calls())
}
