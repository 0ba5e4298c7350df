package handler

import (
	"net/http"
	"time"
)

// Version is reported by GET /. Overridden at build time with
// -ldflags "-X github.com/sakif/aurashift/internal/handler.Version=...".
var Version = "1.0.0"

// HealthHandler answers liveness probes.
type HealthHandler struct {
	environment string
	now         func() time.Time
}

func NewHealthHandler(environment string) *HealthHandler {
	return &HealthHandler{environment: environment, now: time.Now}
}

type healthResponse struct {
	Success     bool      `json:"success"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// HandleHealth: GET /api/health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Success:     true,
		Status:      "ok",
		Message:     "AuraShift API is running",
		Timestamp:   h.now().UTC(),
		Environment: h.environment,
	})
}

type rootResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// HandleRoot: GET /
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Success:     true,
		Message:     "Welcome to AuraShift API",
		Version:     Version,
		Environment: h.environment,
	})
}
