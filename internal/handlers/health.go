package handlers

import (
	"net/http"
	"time"

	"github.com/bizledger/api/internal/services"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Environment string            `json:"environment,omitempty"`
	StartedAt   string            `json:"started_at,omitempty"`
	CheckedAt   string            `json:"checked_at,omitempty"`
	Components  map[string]string `json:"components,omitempty"`
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	system services.SystemService
}

// NewHealthHandlers constructs health handlers. A nil system service still
// serves liveness; readiness then reports only process health.
func NewHealthHandlers(system services.SystemService) *HealthHandlers {
	return &HealthHandlers{system: system}
}

// Healthz reports process liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:    "ok",
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz probes dependencies and reports 503 until they are reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{
			Status:    "error",
			CheckedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	status := http.StatusOK
	statusText := "ok"
	if !report.Healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	payload := healthResponse{
		Status:      statusText,
		Environment: report.Environment,
		CheckedAt:   report.CheckedAt.UTC().Format(time.RFC3339),
		Components:  report.Components,
	}
	if !report.StartedAt.IsZero() {
		payload.StartedAt = report.StartedAt.UTC().Format(time.RFC3339)
	}
	writeJSONResponse(w, status, payload)
}
