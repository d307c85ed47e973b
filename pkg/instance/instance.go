package instance

import (
	"os"
	"strings"
)

const defaultID = "worker-0"

// ID identifies this replica in worker logs and lock ownership. It prefers
// CHOREPAY_WORKER_ID, then the pod hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("CHOREPAY_WORKER_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return defaultID
}
