package steplog

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

func TestLogOutcomesFollowPolicy(t *testing.T) {
	l := New(zerolog.Nop())

	assert.Equal(t, OK, l.Run(BuildConfig, func() error { return nil }))
	assert.Equal(t, Warning, l.Run(StopHotspot, func() error { return errors.New("hostapd not running") }))
	assert.Equal(t, Fatal, l.Run(PersistConfig, func() error { return errors.New("read-only file system") }))

	ran := false
	assert.Equal(t, Fatal, l.Run(InterfaceDown, func() error { ran = true; return nil }))
	assert.False(t, ran, "steps after a fatal failure must not run")

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, StopHotspot, entries[1].Step)
	assert.Equal(t, "hostapd not running", entries[1].Error)

	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.True(t, wifi.IsWarning(warnings[0]))

	assert.Equal(t, PersistConfig, l.FailedStep())
	assert.EqualError(t, l.Failed(), "read-only file system")
}

func TestRecordKeepsTypedFatalError(t *testing.T) {
	l := New(zerolog.Nop())
	timeout := &wifi.TimeoutError{SSID: "HomeWiFi", Attempts: 20}

	assert.Equal(t, Fatal, l.Record(Verify, timeout))
	assert.True(t, wifi.IsTimeout(l.Failed()))
}

func TestPolicyTable(t *testing.T) {
	fatal := []Step{BuildConfig, PersistConfig, Verify, WriteHostapd, WriteDnsmasq, AssignAddress, StartHostapd, StartDnsmasq}
	for _, s := range fatal {
		assert.True(t, IsFatal(s), s)
	}
	bestEffort := []Step{StopHotspot, InterfaceDown, StopSupplicant, InterfaceUp, StartSupplicant, StartDHCP, StopHostapd, StopDnsmasq, EnableForwarding, UnmaskHostapd, RestoreConfig}
	for _, s := range bestEffort {
		assert.False(t, IsFatal(s), s)
	}
}

func TestEmptyLog(t *testing.T) {
	l := New(zerolog.Nop())
	assert.NoError(t, l.Failed())
	assert.Empty(t, l.FailedStep())
	assert.Empty(t, l.Warnings())
}

func TestCompensateRunsAfterFatal(t *testing.T) {
	l := New(zerolog.Nop())
	require.Equal(t, Fatal, l.Record(Verify, &wifi.TimeoutError{SSID: "HomeWiFi", Attempts: 3}))

	ran := false
	assert.Equal(t, OK, l.Compensate(RestoreConfig, func() error { ran = true; return nil }))
	assert.True(t, ran)

	assert.Equal(t, Warning, l.Compensate(RestoreConfig, func() error { return errors.New("disk full") }))
	assert.Equal(t, Verify, l.FailedStep())
	assert.True(t, wifi.IsTimeout(l.Failed()))

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, RestoreConfig, entries[1].Step)
	assert.Equal(t, OK, entries[1].Outcome)
	assert.Len(t, l.Warnings(), 1)
}
