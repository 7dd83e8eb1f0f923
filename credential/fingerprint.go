package credential

import (
	"os"
	"runtime"
	"strings"

	"github.com/visecure/securecore/internal/cryptox"
)

// deviceFingerprint derives a stable-ish identifier from environment
// signals. It is advisory only: it flags "this looks like a different
// machine", it does not authenticate anything.
func deviceFingerprint() string {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()

	signals := []string{
		hostname,
		runtime.GOOS,
		runtime.GOARCH,
		os.Getenv("USER") + os.Getenv("USERNAME"),
		home,
	}

	return cryptox.Checksum([]byte(strings.Join(signals, "|")))
}
