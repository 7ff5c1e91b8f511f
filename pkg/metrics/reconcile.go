package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics counts checkout and order reconciliation outcomes.
type ReconcileMetrics struct {
	sessions *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation counters on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_created_total",
		Help:      "Checkout sessions staged for buyers, by whether a previous session was replaced.",
	}, []string{"replaced"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "reconcile_total",
		Help:      "Order reconciliation attempts by source and status.",
	}, []string{"source", "status"})
	reg.MustRegister(sessions, outcomes)
	return &ReconcileMetrics{sessions: sessions, outcomes: outcomes}
}

// IncSessionCreated records a staged checkout session.
func (m *ReconcileMetrics) IncSessionCreated(replaced bool) {
	if m == nil || m.sessions == nil {
		return
	}
	label := "false"
	if replaced {
		label = "true"
	}
	m.sessions.WithLabelValues(label).Inc()
}

// IncOutcome records a reconciliation result, e.g. source=confirm status=recorded.
func (m *ReconcileMetrics) IncOutcome(source, status string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(status)).Inc()
}
