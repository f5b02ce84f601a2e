package wifi

import (
	"fmt"
	"strings"
)

const (
	MaxSSIDLen       = 32
	MinPassphraseLen = 8
	MaxPassphraseLen = 63
)

// Validate checks the credentials against the rules of their security
// type. It never inspects the radio.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return &ValidationError{Field: "ssid", Reason: "must not be empty"}
	}
	if len(c.SSID) > MaxSSIDLen {
		return &ValidationError{Field: "ssid", Reason: fmt.Sprintf("must be at most %d bytes, got %d", MaxSSIDLen, len(c.SSID))}
	}

	sec := c.EffectiveSecurity()
	switch {
	case sec == SecurityOpen:
		if c.Password != "" {
			return &ValidationError{Field: "password", Reason: "open networks take no password"}
		}
	case sec == SecurityWEP:
		if _, _, ok := WEPKey(c.Password); !ok {
			return &ValidationError{Field: "password", Reason: "WEP key must be 5, 13 or 16 characters or 10, 26 or 32 hex digits"}
		}
	case sec.PSKFamily():
		n := len(c.Password)
		if n < MinPassphraseLen || n > MaxPassphraseLen {
			return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be %d-%d characters, got %d", MinPassphraseLen, MaxPassphraseLen, n)}
		}
		for _, r := range c.Password {
			if r < 0x20 || r > 0x7e {
				return &ValidationError{Field: "password", Reason: "must contain printable ASCII characters only"}
			}
		}
	default:
		return &ValidationError{Field: "security", Reason: fmt.Sprintf("unsupported security type %q", sec)}
	}
	return nil
}

// WEPKey classifies a WEP key. Hex keys of a valid key length are raw
// keys; everything else must be an ASCII key of a valid length.
func WEPKey(key string) (value string, hex bool, ok bool) {
	switch len(key) {
	case 10, 26, 32:
		if isHex(key) {
			return strings.ToLower(key), true, true
		}
	}
	switch len(key) {
	case 5, 13, 16:
		for _, r := range key {
			if r < 0x20 || r > 0x7e {
				return "", false, false
			}
		}
		return key, false, true
	}
	return "", false, false
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
