package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the access ledger.
type Metrics struct {
	// Registered movements by direction and accessor kind
	Registered *prometheus.CounterVec

	// Denied registrations by reason
	Denied *prometheus.CounterVec

	// Amendments applied to existing events
	Amended prometheus.Counter
}

// New creates a new Metrics instance with all access module metrics registered.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigia_access_registered_total",
			Help: "Total registered gate movements by direction and accessor kind",
		}, []string{"direction", "accessor"}), // accessor: "resident", "visitor"

		Denied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vigia_access_denied_total",
			Help: "Total denied registrations by reason",
		}, []string{"reason"}),

		Amended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vigia_access_amended_total",
			Help: "Total amendments to access event annotations",
		}),
	}
}

// IncrementRegistered records a successful registration.
func (m *Metrics) IncrementRegistered(direction, accessor string) {
	if m != nil {
		m.Registered.WithLabelValues(direction, accessor).Inc()
	}
}

// IncrementDenied records a denied registration.
func (m *Metrics) IncrementDenied(reason string) {
	if m != nil {
		m.Denied.WithLabelValues(reason).Inc()
	}
}

// IncrementAmended records an amendment.
func (m *Metrics) IncrementAmended() {
	if m != nil {
		m.Amended.Inc()
	}
}
