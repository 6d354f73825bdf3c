// Package metrics holds the Prometheus collectors exported on /metrics.
// Every recorder is nil-safe so callers can run without a registry.
package metrics

const namespace = "medmarket"

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
