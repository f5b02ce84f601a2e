package scanner

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrBackoff is returned while the guard holds scans off a failing radio.
var ErrBackoff = errors.New("radio scans failing, backing off")

// GuardState is the state of a Guard.
type GuardState int

const (
	GuardClosed  GuardState = iota // scans run
	GuardOpen                      // scans rejected until the cooldown ends
	GuardProbing                   // one scan allowed to test the radio
)

func (s GuardState) String() string {
	switch s {
	case GuardClosed:
		return "closed"
	case GuardOpen:
		return "open"
	case GuardProbing:
		return "probing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Guard stops hammering a wedged driver. After Threshold consecutive scan
// failures it rejects scans for Cooldown, then lets a single probe through;
// a successful probe closes it, a failed one restarts the cooldown.
// Safe for concurrent use.
type Guard struct {
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	state    GuardState
	failures int
	openedAt time.Time
	nowFunc  func() time.Time
}

// NewGuard creates a guard. Non-positive values select 3 failures and a
// 30 second cooldown.
func NewGuard(threshold int, cooldown time.Duration) *Guard {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Guard{threshold: threshold, cooldown: cooldown, nowFunc: time.Now}
}

// Do runs fn unless the guard is open, recording the outcome.
func (g *Guard) Do(fn func() error) error {
	g.mu.Lock()
	switch g.state {
	case GuardOpen:
		if g.nowFunc().Sub(g.openedAt) < g.cooldown {
			g.mu.Unlock()
			return ErrBackoff
		}
		g.state = GuardProbing
	case GuardProbing:
		// A probe is already in flight.
		g.mu.Unlock()
		return ErrBackoff
	}
	g.mu.Unlock()

	err := fn()

	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		g.state = GuardClosed
		g.failures = 0
		return nil
	}
	g.failures++
	if g.state == GuardProbing || g.failures >= g.threshold {
		g.state = GuardOpen
		g.openedAt = g.nowFunc()
	}
	return err
}

// State returns the current state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Reset closes the guard, clearing the failure count.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = GuardClosed
	g.failures = 0
}
