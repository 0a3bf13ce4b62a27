package observability

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthChecker backs the /healthz and /readyz probes. Liveness holds as long
// as the process can serve the handler; readiness flips on only once recovery
// has finished and the DB and NATS connections are up, and can flip back off
// during shutdown to drain traffic.
type HealthChecker struct {
	ready atomic.Bool
	start time.Time
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{start: time.Now()}
}

// SetReady flips the readiness gate.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

// LivenessHandler always answers 200 with the process uptime.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": time.Since(h.start).String(),
	})
}

// ReadinessHandler answers 200 once the gate is open, 503 before that.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if h.ready.Load() {
		writeProbe(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}
	writeProbe(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
}

func writeProbe(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
