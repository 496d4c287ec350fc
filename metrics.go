package credshare

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/credshare/internal/metrics"
)

// NewPrometheusMetrics creates a MetricsCollector backed by Prometheus.
//
// Metrics are registered with reg on first use. An empty namespace selects
// "credshare".
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	coord, err := credshare.NewCoordinator(&cfg, nc, src,
//	    credshare.WithMetrics(credshare.NewPrometheusMetrics(reg, "")))
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}
