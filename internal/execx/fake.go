package execx

import (
	"context"
	"strings"
	"sync"
)

// Fake is a scriptable Runner. Commands are matched against registered
// prefixes of "name arg1 arg2 ..."; the most recently registered match
// wins. Unmatched commands succeed with empty output.
type Fake struct {
	mu    sync.Mutex
	rules []fakeRule
	calls []string
}

type fakeRule struct {
	prefix string
	fn     func(args []string) ([]byte, error)
}

// NewFake creates an empty fake runner.
func NewFake() *Fake {
	return &Fake{}
}

// On scripts a fixed response for commands starting with prefix.
func (f *Fake) On(prefix, output string, err error) *Fake {
	return f.OnFunc(prefix, func([]string) ([]byte, error) {
		return []byte(output), err
	})
}

// OnFunc scripts a dynamic response for commands starting with prefix.
func (f *Fake) OnFunc(prefix string, fn func(args []string) ([]byte, error)) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{prefix: prefix, fn: fn})
	return f
}

// Run records the command and returns the scripted response.
func (f *Fake) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	f.calls = append(f.calls, line)
	var fn func([]string) ([]byte, error)
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			fn = f.rules[i].fn
			break
		}
	}
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(args)
}

// Calls returns every command line run so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Called reports whether any command starting with prefix was run.
func (f *Fake) Called(prefix string) bool {
	return f.Index(prefix) >= 0
}

// Index returns the position of the first call starting with prefix, or -1.
func (f *Fake) Index(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

// Reset forgets recorded calls but keeps the script.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
