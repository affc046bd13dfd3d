package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// readinessTimeout bounds all dependency checks of one probe.
const readinessTimeout = 3 * time.Second

// Pinger is a dependency that can report whether it answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is a named readiness check. A nil Pinger reports
// "not configured" and does not fail the probe.
type Dependency struct {
	Name   string
	Pinger Pinger
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps   []Dependency
	logger *slog.Logger
}

func NewHealthHandler(logger *slog.Logger, deps ...Dependency) *HealthHandler {
	return &HealthHandler{
		deps:   deps,
		logger: logger.With("component", "handler.health"),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz answers 200 while the process is up.
//
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency in parallel and answers 503 if any is down.
// Failure details are logged, not returned.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		checks  = make(map[string]string, len(h.deps))
		healthy = true
		g       errgroup.Group
	)
	for _, dep := range h.deps {
		g.Go(func() error {
			state := "ok"
			switch {
			case dep.Pinger == nil:
				state = "not configured"
			default:
				if err := dep.Pinger.Ping(ctx); err != nil {
					h.logger.Warn("readiness_check_failed", "dependency", dep.Name, "error", err)
					state = "unavailable"
				}
			}

			mu.Lock()
			checks[dep.Name] = state
			if state == "unavailable" {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp, code := HealthResponse{Status: "ok", Checks: checks}, http.StatusOK
	if !healthy {
		resp.Status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
