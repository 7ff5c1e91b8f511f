package instance

import (
	"os"
	"strings"
)

// ID identifies the running process in logs: the dyno name when present, else the host.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("DYNO")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
