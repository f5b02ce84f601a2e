// Package wpaconf builds, parses and persists the wpa_supplicant client
// configuration.
package wpaconf

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

// Options tunes how credentials are rendered.
type Options struct {
	// HashPassphrase stores the derived 256-bit PSK instead of the
	// passphrase for WPA/WPA2 networks. SAE needs the passphrase itself
	// and is never hashed.
	HashPassphrase bool
}

// BuildBlock validates the credentials and returns the network block that
// joins them. Priority is left unset when priority <= 0.
func BuildBlock(c wifi.Credentials, priority int, opts Options) (*Block, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	b := &Block{}
	b.Set("ssid", EncodeSSID(c.SSID))
	if c.Hidden {
		b.Set("scan_ssid", "1")
	}

	switch sec := c.EffectiveSecurity(); sec {
	case wifi.SecurityOpen:
		b.Set("key_mgmt", "NONE")
	case wifi.SecurityWEP:
		key, isHex, _ := wifi.WEPKey(c.Password)
		b.Set("key_mgmt", "NONE")
		if isHex {
			b.Set("wep_key0", key)
		} else {
			b.Set("wep_key0", quote(key))
		}
		b.Set("wep_tx_keyidx", "0")
	case wifi.SecurityWPA3:
		b.Set("key_mgmt", "SAE")
		b.Set("ieee80211w", "2")
		b.Set("psk", quote(c.Password))
	case wifi.SecurityWPA2:
		b.Set("key_mgmt", "WPA-PSK")
		b.Set("proto", "RSN")
		b.Set("pairwise", "CCMP")
		b.Set("psk", psk(c, opts))
	case wifi.SecurityWPA:
		b.Set("key_mgmt", "WPA-PSK")
		b.Set("proto", "WPA")
		b.Set("pairwise", "TKIP")
		b.Set("psk", psk(c, opts))
	default:
		b.Set("key_mgmt", "WPA-PSK")
		b.Set("proto", "RSN WPA")
		b.Set("pairwise", "CCMP TKIP")
		b.Set("psk", psk(c, opts))
	}

	if priority > 0 {
		b.Set("priority", strconv.Itoa(priority))
	}
	return b, nil
}

// BuildNetworkBlock renders the network block for c.
func BuildNetworkBlock(c wifi.Credentials, priority int, opts Options) (string, error) {
	b, err := BuildBlock(c, priority, opts)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// BuildClientConfig renders a complete configuration holding exactly one
// network block.
func BuildClientConfig(c wifi.Credentials, country string, opts Options) (string, error) {
	b, err := BuildBlock(c, 1, opts)
	if err != nil {
		return "", err
	}
	f := NewFile(country)
	f.Blocks = append(f.Blocks, b)
	return f.String(), nil
}

func psk(c wifi.Credentials, opts Options) string {
	if opts.HashPassphrase {
		return DerivePSK(c.Password, c.SSID)
	}
	return quote(c.Password)
}

// DerivePSK computes the hex PSK wpa_passphrase would print.
func DerivePSK(passphrase, ssid string) string {
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New)
	return hex.EncodeToString(key)
}

// EncodeSSID returns the ssid value as written in a network block. Plain
// printable names are quoted; anything containing quotes, backslashes,
// control or non-ASCII bytes is written as hex.
func EncodeSSID(ssid string) string {
	for i := 0; i < len(ssid); i++ {
		c := ssid[i]
		if c < 0x20 || c > 0x7e || c == '"' || c == '\\' {
			return hex.EncodeToString([]byte(ssid))
		}
	}
	return quote(ssid)
}

// DecodeSSID reverses EncodeSSID and also understands the P"..." printf
// form wpa_supplicant writes with update_config.
func DecodeSSID(v string) string {
	switch {
	case len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"':
		return v[1 : len(v)-1]
	case len(v) >= 3 && strings.HasPrefix(v, `P"`) && v[len(v)-1] == '"':
		return unescapePrintf(v[2 : len(v)-1])
	}
	if raw, err := hex.DecodeString(v); err == nil {
		return string(raw)
	}
	return v
}

func unescapePrintf(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'e':
			sb.WriteByte(0x1b)
		case 'x':
			if i+2 < len(s) {
				if b, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
					sb.WriteByte(b[0])
					i += 2
					continue
				}
			}
			sb.WriteByte('x')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func quote(s string) string {
	return `"` + s + `"`
}
