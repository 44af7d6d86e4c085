package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the pass module.
type Metrics struct {
	// Passes issued by kind
	Issued *prometheus.CounterVec

	// Lifecycle transitions (cancelled, updated, deleted) by outcome
	Transitions *prometheus.CounterVec

	// Code generation retries caused by collisions
	CodeRetries prometheus.Counter
}

// New creates a new Metrics instance with all pass module metrics registered.
func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigia_pass_issued_total",
			Help: "Total passes issued by kind",
		}, []string{"kind"}), // kind: "single_use", "recurring", "date_limited"

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigia_pass_transitions_total",
			Help: "Total pass lifecycle transitions by operation and outcome",
		}, []string{"operation", "outcome"}),

		CodeRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigia_pass_code_retries_total",
			Help: "Total pass code regenerations after a uniqueness collision",
		}),
	}
}

// IncrementIssued records a newly issued pass.
func (m *Metrics) IncrementIssued(kind string) {
	if m != nil {
		m.Issued.WithLabelValues(kind).Inc()
	}
}

// IncrementTransition records the outcome of a lifecycle operation.
func (m *Metrics) IncrementTransition(operation, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(operation, outcome).Inc()
	}
}

// IncrementCodeRetry records a code collision retry.
func (m *Metrics) IncrementCodeRetry() {
	if m != nil {
		m.CodeRetries.Inc()
	}
}
