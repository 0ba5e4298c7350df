package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/aurashift/internal/service"
)

// ProgressHandler serves the read-only dashboard and chart endpoints.
type ProgressHandler struct {
	progress *service.ProgressService
	logger   *slog.Logger
}

func NewProgressHandler(progress *service.ProgressService, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{progress: progress, logger: logger}
}

// HandleDashboard: GET /api/dashboard/stats
func (h *ProgressHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	d, err := h.progress.DashboardStats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "", d)
}

// HandleChart: GET /api/chart/data?timeRange=4d|30d|90d
func (h *ProgressHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	chart, err := h.progress.ChartSeries(r.Context(), userID, r.URL.Query().Get("timeRange"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, "", chart)
}
