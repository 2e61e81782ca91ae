package handlers

import (
	"net/http"
	"time"
)

// Version metadata, overridable at build time via ldflags.
var (
	Version   = "0.3.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// HealthHandler serves liveness, health, and version endpoints.
type HealthHandler struct {
	startTime time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startTime: time.Now()}
}

// Liveness handles GET /api/v1/liveness. It answers as long as the
// process is serving requests, with no dependency checks.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	writeJSON(w, r, http.StatusOK, response)
}

// Health handles GET /api/v1/health. The service has no external
// dependencies, so health mirrors liveness with a check map for
// forward compatibility.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"checks": map[string]string{
			"resolver": "ok",
		},
	}

	writeJSON(w, r, http.StatusOK, response)
}

// Version handles GET /api/v1/version.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service":    "portscope",
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"timestamp":  time.Now().UTC(),
	}

	writeJSON(w, r, http.StatusOK, response)
}
