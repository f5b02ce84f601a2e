package scanner

import (
	"bufio"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nuclearlighters/wifisetup/internal/wifi"
)

var (
	cellRe    = regexp.MustCompile(`^Cell \d+ - Address:\s*([0-9A-Fa-f:]{17})`)
	essidRe   = regexp.MustCompile(`^ESSID:"(.*)"$`)
	channelRe = regexp.MustCompile(`^Channel[:=](\d+)`)
	freqRe    = regexp.MustCompile(`Frequency[:=]([\d.]+)\s*GHz`)
	qualityRe = regexp.MustCompile(`Quality[:=](\d+)/(\d+)`)
	levelRe   = regexp.MustCompile(`Signal level[:=](-?\d+)\s*dBm`)
	ratioRe   = regexp.MustCompile(`Signal level[:=](\d+)/(\d+)`)
)

type cell struct {
	net       wifi.Network
	hasSignal bool
	encrypted bool
	wpa       bool
	rsn       bool
	sae       bool
}

func (c *cell) security() wifi.Security {
	switch {
	case c.sae:
		return wifi.SecurityWPA3
	case c.rsn:
		return wifi.SecurityWPA2
	case c.wpa:
		return wifi.SecurityWPA
	case c.encrypted:
		return wifi.SecurityWEP
	}
	return wifi.SecurityOpen
}

// ParseIwlist extracts networks from `iwlist <iface> scan` output. Cells
// with no SSID (hidden networks) or no signal reading are dropped.
func ParseIwlist(output string) []wifi.Network {
	var cells []*cell
	var cur *cell
	var inIE string

	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if m := cellRe.FindStringSubmatch(line); m != nil {
			cur = &cell{net: wifi.Network{BSSID: strings.ToLower(m[1])}}
			cells = append(cells, cur)
			inIE = ""
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "ESSID:"):
			if m := essidRe.FindStringSubmatch(line); m != nil {
				cur.net.SSID = decodeIwlistSSID(m[1])
			}
		case channelRe.MatchString(line):
			m := channelRe.FindStringSubmatch(line)
			cur.net.Channel, _ = strconv.Atoi(m[1])
		case strings.HasPrefix(line, "Frequency"):
			if m := freqRe.FindStringSubmatch(line); m != nil {
				ghz, _ := strconv.ParseFloat(m[1], 64)
				mhz := int(ghz*1000 + 0.5)
				cur.net.Band = wifi.BandForFrequency(mhz)
				if cur.net.Channel == 0 {
					cur.net.Channel = wifi.ChannelForFrequency(mhz)
				}
			}
		case strings.Contains(line, "Quality") || strings.Contains(line, "Signal level"):
			parseSignal(cur, line)
		case strings.HasPrefix(line, "Encryption key:"):
			cur.encrypted = strings.HasSuffix(line, ":on")
		case strings.HasPrefix(line, "IE:"):
			switch {
			case strings.Contains(line, "WPA2") || strings.Contains(line, "802.11i"):
				cur.rsn = true
				inIE = "rsn"
			case strings.Contains(line, "WPA Version"):
				cur.wpa = true
				inIE = "wpa"
			default:
				inIE = ""
			}
		case strings.HasPrefix(line, "Authentication Suites") && inIE != "":
			if strings.Contains(line, "SAE") {
				cur.sae = true
			}
		}
	}

	out := make([]wifi.Network, 0, len(cells))
	for _, c := range cells {
		if c.net.SSID == "" || !c.hasSignal {
			continue
		}
		c.net.Security = c.security()
		out = append(out, c.net)
	}
	return out
}

// Quality ratios are preferred over dBm readings when a driver reports both.
func parseSignal(c *cell, line string) {
	if m := qualityRe.FindStringSubmatch(line); m != nil {
		cur, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		c.net.SignalPercent = wifi.QualityToPercent(cur, total)
		c.hasSignal = true
		return
	}
	if m := ratioRe.FindStringSubmatch(line); m != nil {
		cur, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		c.net.SignalPercent = wifi.QualityToPercent(cur, total)
		c.hasSignal = true
		return
	}
	if m := levelRe.FindStringSubmatch(line); m != nil {
		dbm, _ := strconv.Atoi(m[1])
		c.net.SignalPercent = wifi.DBMToPercent(dbm)
		c.hasSignal = true
	}
}

// decodeIwlistSSID turns the \xNN escapes iwlist prints for non-printable
// bytes back into bytes. An SSID of only NUL bytes is a hidden network.
func decodeIwlistSSID(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	decoded := b.String()
	if strings.Trim(decoded, "\x00") == "" {
		return ""
	}
	return decoded
}

// Dedupe keeps the strongest entry per SSID and sorts by signal, strongest
// first, then by name.
func Dedupe(networks []wifi.Network) []wifi.Network {
	best := make(map[string]wifi.Network, len(networks))
	for _, n := range networks {
		prev, ok := best[n.SSID]
		if !ok || n.SignalPercent > prev.SignalPercent {
			best[n.SSID] = n
		}
	}

	out := make([]wifi.Network, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SignalPercent != out[j].SignalPercent {
			return out[i].SignalPercent > out[j].SignalPercent
		}
		return out[i].SSID < out[j].SSID
	})
	return out
}
