// Package handler provides HTTP handlers for the console gateway.
package handler

import (
	"net/http"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	IsConnected() bool
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	deps map[string]Pinger
}

// NewHealthHandler creates a health handler. A nil nats pinger means the event
// bus is disabled and does not gate readiness.
func NewHealthHandler(nats Pinger) *HealthHandler {
	deps := map[string]Pinger{}
	if nats != nil {
		deps["nats"] = nats
	}
	return &HealthHandler{deps: deps}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready. Every registered dependency must be connected.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.deps))
	status := http.StatusOK
	for name, dep := range h.deps {
		if dep.IsConnected() {
			checks[name] = "up"
			continue
		}
		checks[name] = "down"
		status = http.StatusServiceUnavailable
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}
