package system

import (
	"context"
	"testing"
	"time"

	"github.com/nuclearlighters/wifisetup/internal/execx"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		name string
		secs uint64
		want string
	}{
		{"seconds only", 42, "42s"},
		{"minutes", 125, "2m 5s"},
		{"hours", 3600 + 61, "1h 1m 1s"},
		{"days", 2*86400 + 5*3600, "2d 5h 0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatUptime(tt.secs); got != tt.want {
				t.Errorf("formatUptime(%d) = %q, want %q", tt.secs, got, tt.want)
			}
		})
	}
}

func TestGetInfo(t *testing.T) {
	info := GetInfo(context.Background())
	if info.Architecture == "" {
		t.Error("GetInfo() architecture is empty")
	}
}

func TestRestarterScheduleIsIdempotent(t *testing.T) {
	fake := execx.NewFake()
	r := NewRestarter(fake, []string{"systemctl", "reboot"}, 10*time.Millisecond, false)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.nowFunc = func() time.Time { return fixed }

	armed := 0
	r.OnSchedule = func(string) { armed++ }

	at, first := r.Schedule("client mode committed")
	if !first {
		t.Fatal("first Schedule() should arm the restart")
	}
	if want := fixed.Add(10 * time.Millisecond); !at.Equal(want) {
		t.Errorf("Schedule() at = %v, want %v", at, want)
	}

	again, second := r.Schedule("reset requested")
	if second {
		t.Error("second Schedule() should not arm another restart")
	}
	if !again.Equal(at) {
		t.Errorf("second Schedule() at = %v, want %v", again, at)
	}
	if armed != 1 {
		t.Errorf("OnSchedule called %d times, want 1", armed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !fake.Called("systemctl reboot") {
		if time.Now().After(deadline) {
			t.Fatal("restart command was not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := len(fake.Calls()); n != 1 {
		t.Errorf("restart command ran %d times, want 1", n)
	}
}

func TestRestarterDisabled(t *testing.T) {
	fake := execx.NewFake()
	r := NewRestarter(fake, []string{"systemctl", "reboot"}, time.Millisecond, true)

	if _, ok := r.Schedule("test"); !ok {
		t.Fatal("Schedule() should arm even when disabled")
	}
	time.Sleep(50 * time.Millisecond)
	if fake.Called("systemctl") {
		t.Error("disabled restarter ran the restart command")
	}
}

func TestRestarterCancel(t *testing.T) {
	fake := execx.NewFake()
	r := NewRestarter(fake, []string{"systemctl", "reboot"}, time.Hour, false)

	r.Schedule("test")
	r.Cancel()
	if !r.Scheduled().IsZero() {
		t.Error("Cancel() should clear the scheduled time")
	}
	if _, ok := r.Schedule("again"); !ok {
		t.Error("Schedule() after Cancel() should arm again")
	}
	r.Cancel()
}

func TestRestarterWait(t *testing.T) {
	fake := execx.NewFake()
	r := NewRestarter(fake, []string{"systemctl", "reboot"}, 10*time.Millisecond, false)

	if err := r.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() with nothing scheduled = %v", err)
	}

	r.Schedule("client mode committed")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if !fake.Called("systemctl reboot") {
		t.Error("Wait() returned before the restart command ran")
	}
}

func TestRestarterWaitCancelled(t *testing.T) {
	r := NewRestarter(execx.NewFake(), []string{"systemctl", "reboot"}, time.Hour, false)
	r.Schedule("test")

	errc := make(chan error, 1)
	go func() { errc <- r.Wait(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	r.Cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Wait() = %v, want nil after Cancel()", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after Cancel()")
	}
}
