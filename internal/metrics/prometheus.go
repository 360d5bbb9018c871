package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder reports relay and socket metrics using Prometheus primitives.
type PrometheusRecorder struct {
	relays      *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	connections prometheus.Gauge
}

func NewPrometheusRecorder(registry *prometheus.Registry) (*PrometheusRecorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("prometheus registry is nil")
	}

	r := &PrometheusRecorder{
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chaos_ai_relays_total",
			Help: "Total number of relay calls by outcome",
		}, []string{"outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chaos_ai_relay_duration_seconds",
			Help:    "Relay latency in seconds, including the completion backend call",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chaos_ai_socket_connections",
			Help: "Number of open WebSocket connections",
		}),
	}

	for _, collector := range []prometheus.Collector{r.relays, r.durations, r.connections} {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveRelay(outcome string, duration time.Duration) {
	r.relays.WithLabelValues(outcome).Inc()
	r.durations.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) ConnectionOpened() {
	r.connections.Inc()
}

func (r *PrometheusRecorder) ConnectionClosed() {
	r.connections.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
