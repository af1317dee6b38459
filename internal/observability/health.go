package observability

import (
	"sync/atomic"
	"time"
)

// HealthChecker tracks process liveness and readiness. Readiness flips
// on only after recovery finishes and the database and NATS connections
// are up; the HTTP layer renders the probes.
type HealthChecker struct {
	ready     atomic.Bool
	startTime time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{startTime: time.Now()}
}

// SetReady marks the service ready (or not) to accept traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is ready.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// Uptime returns how long the process has been alive.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}
