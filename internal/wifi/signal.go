package wifi

// DBMToPercent converts a received signal strength in dBm to a 0-100
// figure using 2*(dBm+100). This is a display approximation, not a
// calibrated mapping: -50 dBm and stronger read as 100, -100 dBm and
// weaker as 0.
func DBMToPercent(dbm int) int {
	return clampPercent(2 * (dbm + 100))
}

// QualityToPercent converts a driver quality ratio such as 56/70.
func QualityToPercent(cur, max int) int {
	if max <= 0 {
		return 0
	}
	return clampPercent(cur * 100 / max)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// BandForFrequency labels a centre frequency in MHz.
func BandForFrequency(mhz int) Band {
	switch {
	case mhz >= 2400 && mhz <= 2500:
		return Band24GHz
	case mhz >= 5000 && mhz <= 6000:
		return Band5GHz
	}
	return ""
}

// ChannelForFrequency maps a centre frequency in MHz to its channel number.
func ChannelForFrequency(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz < 2484:
		return (mhz-2412)/5 + 1
	case mhz >= 5180 && mhz <= 5885:
		return (mhz-5180)/5 + 36
	}
	return 0
}
