package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdulrahmanalageeli/match-sub002/pkg/metrics"
)

// StatsProvider exposes runtime counters of the engine.
type StatsProvider interface {
	GetStats() map[string]any
}

// StatusHandler serves liveness, readiness and runtime counters.
type StatusHandler struct {
	stats   StatsProvider
	metrics http.Handler
}

// NewStatusHandler creates a status handler backed by stats.
func NewStatusHandler(stats StatsProvider) *StatusHandler {
	return &StatusHandler{
		stats:   stats,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth serves the metrics registry on GET /healthz.
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// HandleReady answers GET /readyz with 503 until the worker pool is started.
func (h *StatusHandler) HandleReady(w http.ResponseWriter, _ *http.Request) {
	if started, _ := h.stats.GetStats()["started"].(bool); !started {
		tagError(w, "unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStats serves GET /stats.
func (h *StatusHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}
