package instance

import "os"

// GetID identifies this process in logs and lock tokens. It prefers the
// explicit worker id, then the platform dyno name, then the hostname.
func GetID() string {
	for _, key := range []string{"AQUAFLOW_WORKER_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
