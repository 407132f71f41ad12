package lifecycle

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	operations       *prometheus.CounterVec
	started          prometheus.Gauge
	validationErrors prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crucible",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Lifecycle operations by operation and result.",
		}, []string{"operation", "result"}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crucible",
			Name:      "started_domains",
			Help:      "Domains holding host resources in this process.",
		}),
		validationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crucible",
			Name:      "start_validation_errors_total",
			Help:      "Errors that refused a domain start.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.started, m.validationErrors)
	}
	return m
}

// observe counts an operation once it returns. Use it deferred with a named
// error result.
func (m *metrics) observe(operation string, err *error) {
	result := "success"
	if *err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}
