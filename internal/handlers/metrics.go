package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMetricsHandler exposes the process-wide collectors registered in
// internal/metrics on the default Prometheus registry.
func NewMetricsHandler() http.Handler {
	return promhttp.Handler()
}
