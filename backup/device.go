package backup

import (
	"os"
	"runtime"
	"time"

	"github.com/visecure/securecore/internal/cryptox"
)

// PlatformClass is a coarse device category. Advisory only.
type PlatformClass string

const (
	PlatformDesktop PlatformClass = "desktop"
	PlatformMobile  PlatformClass = "mobile"
	PlatformWeb     PlatformClass = "web"
	PlatformOther   PlatformClass = "other"
)

// DeviceInfo describes a device known to the sync registry. Registration
// carries no trust or authorization: a registered device is granted nothing
// by being listed.
type DeviceInfo struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	PlatformClass PlatformClass `json:"platformClass"`
	LastSync      time.Time     `json:"lastSync"`
	Online        bool          `json:"online"`
}

// LocalDevice derives the local device's record from environment signals.
// It is computed, never stored: only remote devices live in the registry.
func LocalDevice(now time.Time) *DeviceInfo {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	return &DeviceInfo{
		ID:            cryptox.Checksum([]byte(hostname + "|" + runtime.GOOS + "|" + runtime.GOARCH))[:16],
		Name:          hostname,
		PlatformClass: platformClassFor(runtime.GOOS),
		LastSync:      now,
		Online:        true,
	}
}

func platformClassFor(goos string) PlatformClass {
	switch goos {
	case "android", "ios":
		return PlatformMobile
	case "js", "wasip1":
		return PlatformWeb
	case "linux", "darwin", "windows", "freebsd", "openbsd", "netbsd":
		return PlatformDesktop
	}
	return PlatformOther
}
