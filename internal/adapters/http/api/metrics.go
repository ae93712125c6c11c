package api

import (
	"net/http"

	"github.com/okian/handoff/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the process metrics registry.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler creates a handler backed by metrics.GetRegistry.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		handler: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleMetrics handles GET /metrics requests.
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
