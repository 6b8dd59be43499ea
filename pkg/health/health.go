// Package health provides Kubernetes-style liveness and readiness probe
// endpoints. Checks run on demand when a probe endpoint is hit, each under
// its own timeout, so a stuck dependency fails one probe response instead
// of wedging the process.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc reports the health of one component: nil when healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	run     CheckFunc
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []check
	readiness []check
}

// New creates a Health instance. The service starts not ready; call
// SetReady(true) once initialization is complete.
func New() *Health {
	return &Health{}
}

// SetReady flips the readiness gate. While false, ReadyEndpoint reports 503
// regardless of check results, which covers startup and shutdown drain.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// AddLivenessCheck registers a liveness check with a per-run timeout.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, check{name: name, timeout: timeout, run: fn})
}

// AddReadinessCheck registers a readiness check with a per-run timeout.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, check{name: name, timeout: timeout, run: fn})
}

// LiveEndpoint serves the liveness probe.
func (h *Health) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := h.liveness
	h.mu.RUnlock()
	serve(w, r, checks, true)
}

// ReadyEndpoint serves the readiness probe. It fails while SetReady(false).
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := h.readiness
	h.mu.RUnlock()
	serve(w, r, checks, h.ready.Load())
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func serve(w http.ResponseWriter, r *http.Request, checks []check, gate bool) {
	resp := probeResponse{Status: "ok"}
	status := http.StatusOK

	if !gate {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if len(checks) > 0 {
		resp.Checks = make(map[string]string, len(checks))
		for _, c := range checks {
			if err := runCheck(r.Context(), c); err != nil {
				resp.Checks[c.name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
			} else {
				resp.Checks[c.name] = "ok"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func runCheck(ctx context.Context, c check) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.run(ctx)
}
