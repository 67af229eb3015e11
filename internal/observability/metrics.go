package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of one run.
// Metrics are registered on the caller's registry so a batch run (and each
// test) owns its own set instead of sharing the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	RecordsApplied  *prometheus.CounterVec
	RecordsRejected *prometheus.CounterVec
	ApplyDuration   *prometheus.HistogramVec
	Accounts        prometheus.Gauge
	AccountsLocked  prometheus.Gauge
	CoreSequence    prometheus.Gauge
}

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	latencyBuckets := []float64{
		0.0000005, 0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001,
	}

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_records_applied_total",
			Help: "Records successfully applied to an account",
		}, []string{"type"}),

		RecordsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_records_rejected_total",
			Help: "Records discarded, by rejection reason",
		}, []string{"type", "reason"}),

		ApplyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payments_record_apply_duration_seconds",
			Help:    "Time to apply a single record",
			Buckets: latencyBuckets,
		}, []string{"type"}),

		Accounts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payments_accounts",
			Help: "Known client accounts",
		}),

		AccountsLocked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payments_accounts_locked",
			Help: "Client accounts frozen by a chargeback",
		}),

		CoreSequence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "payments_core_sequence",
			Help: "Number of records processed so far",
		}),
	}
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile dumps all metrics in the text exposition format, for the
// node-exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
