// Package metrics exposes the registry's Prometheus metrics on a dedicated
// listener, kept separate from the API server so scrapes are unaffected by
// API load or draining.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the /metrics endpoint and owns the registry the
// service's instruments are registered in.
type MetricsServer struct {
	srv      *http.Server
	registry *prometheus.Registry

	operationsTotal *prometheus.CounterVec
}

// New creates a metrics server for the given service name listening on addr.
// An empty addr yields a server that collects but never listens, useful in
// tests and when metrics are disabled.
func New(name, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &MetricsServer{
		registry: registry,
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: name,
			Name:      "operations_total",
			Help:      "Registry operations by operation name and status code.",
		}, []string{"operation", "status"}),
	}
	registry.MustRegister(m.operationsTotal)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	m.srv = &http.Server{Addr: addr, Handler: mux}
	return m, nil
}

// RecordOperation counts one dispatched registry operation.
func (m *MetricsServer) RecordOperation(operation string, status int) {
	m.operationsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}

// ListenAndServe blocks serving the metrics endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
