package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSubscriptions prometheus.Gauge
	SnapshotEvents      *prometheus.CounterVec
	StoreWrites         *prometheus.CounterVec
	BatchSize           prometheus.Histogram
	WSMessages          *prometheus.CounterVec
	GenerationRequests  *prometheus.CounterVec
	GenerationLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Number of open live query subscriptions.",
		}),
		SnapshotEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_events_total",
			Help:      "Full-snapshot deliveries by event kind.",
		}, []string{"kind"}),
		StoreWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Store write operations by collection and outcome.",
		}, []string{"collection", "outcome"}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_commit_size",
			Help:      "Documents per atomic batch commit.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		GenerationRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "AI task-generation requests by outcome.",
		}, []string{"outcome"}),
		GenerationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "External generation call latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
	}
}

func (m *Metrics) ObserveWrite(collection string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreWrites.WithLabelValues(collection, outcome).Inc()
}

func (m *Metrics) ObserveGeneration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationRequests.WithLabelValues(outcome).Inc()
	m.GenerationLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
