package hotspot

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/nuclearlighters/wifisetup/internal/config"
)

// JoinString returns the WIFI: URI phones understand when scanning a QR code.
func JoinString(hc config.HotspotConfig) string {
	ssid := escapeJoinField(hc.SSID)
	if hc.Open() {
		return fmt.Sprintf("WIFI:T:nopass;S:%s;;", ssid)
	}
	return fmt.Sprintf("WIFI:T:WPA;S:%s;P:%s;;", ssid, escapeJoinField(hc.Password))
}

// QRCode renders JoinString as a PNG of size×size pixels.
func QRCode(hc config.HotspotConfig, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(JoinString(hc), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

func escapeJoinField(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `"`, `\"`, `:`, `\:`)
	return r.Replace(s)
}
