package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status              string            `json:"status"`
	Timestamp           time.Time         `json:"timestamp"`
	Mode                string            `json:"mode,omitempty"`
	StorageBackend      string            `json:"storage_backend"`
	DirectoryConfigured bool              `json:"directory_configured"`
	Checks              map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports the service status and runs every dependency probe
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /v1/healthz [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:              "healthy",
		Timestamp:           h.now().UTC(),
		Mode:                h.info.Mode,
		StorageBackend:      h.info.StorageBackend,
		DirectoryConfigured: h.info.DirectoryConfigured,
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	if len(names) > 0 {
		resp.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}
