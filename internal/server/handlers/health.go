package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/namelens/repolens/internal/errors"
)

// Check states.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// HealthResponse is the aggregate health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of a liveness or readiness probe.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is implemented by components that can report their health,
// such as the store.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthManager runs registered checks for the health endpoints.
type HealthManager struct {
	checkers  map[string]HealthChecker
	version   string
	responder apperrors.Responder
	clock     func() time.Time
}

// NewHealthManager creates a manager reporting version.
func NewHealthManager(version string, responder apperrors.Responder) *HealthManager {
	return &HealthManager{
		checkers:  make(map[string]HealthChecker),
		version:   version,
		responder: responder,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterChecker adds a named check. Register before serving.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.checkers[name] = checker
}

func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}
		if err := hm.checkers[name].CheckHealth(ctx); err != nil {
			checks[name] = StatusUnhealthy
		} else {
			checks[name] = StatusHealthy
		}
	}
	return checks
}

func determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		if status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if status == StatusDegraded || status == StatusTimeout {
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// HealthHandler serves the aggregate health report.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := determineOverallStatus(checks)
	if status == StatusUnhealthy {
		hm.unavailable(w, r, "aggregate health check failed", "", status, checks)
		return
	}

	writeJSON(w, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: hm.clock().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler reports that the process is serving. It runs no checks.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ProbeResponse{Status: StatusHealthy, Timestamp: hm.clock()})
}

// ReadinessHandler reports whether every registered check passes.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := determineOverallStatus(checks)
	if status == StatusUnhealthy {
		hm.unavailable(w, r, "readiness probe failed", "ready", status, checks)
		return
	}

	writeJSON(w, ProbeResponse{Status: status, Timestamp: hm.clock()})
}

func (hm *HealthManager) unavailable(w http.ResponseWriter, r *http.Request, message, probe, status string, checks map[string]string) {
	envelope := apperrors.NewServiceUnavailableError(message)
	envelope = enrichHealthEnvelope(envelope, probe, status, checks)
	hm.responder.RespondWithEnvelope(w, r, envelope)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	if len(failing) == 0 {
		return envelope
	}
	sort.Strings(failing)
	if updated, err := envelope.WithContext(map[string]interface{}{"unhealthy_checks": failing}); err == nil {
		envelope = updated
	}
	return envelope
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
