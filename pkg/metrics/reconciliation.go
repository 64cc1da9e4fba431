package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics tracks the compensating sweep over succeeded intents
// and stale lifecycle rows.
type ReconciliationMetrics struct {
	repaired  *prometheus.CounterVec
	failed    *prometheus.CounterVec
	scanned   *prometheus.CounterVec
	unmatched prometheus.Counter
}

// NewReconciliationMetrics registers the sweep metrics on the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	repaired := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_repaired_total",
		Help: "Intents repaired by the compensating sweep.",
	}, []string{"kind"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_failed_total",
		Help: "Intents the sweep could not repair after a retry.",
	}, []string{"kind"})
	scanned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_scanned_total",
		Help: "Candidate intents examined by the sweep.",
	}, []string{"kind"})
	unmatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_unknown_intent_total",
		Help: "Gateway events acknowledged for intents this system never created.",
	})
	reg.MustRegister(repaired, failed, scanned, unmatched)
	return &ReconciliationMetrics{
		repaired:  repaired,
		failed:    failed,
		scanned:   scanned,
		unmatched: unmatched,
	}
}

// IncRepaired increments the repaired counter for the given sweep kind.
func (r *ReconciliationMetrics) IncRepaired(kind string) {
	if r == nil || r.repaired == nil {
		return
	}
	r.repaired.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailed increments the failure counter for the given sweep kind.
func (r *ReconciliationMetrics) IncFailed(kind string) {
	if r == nil || r.failed == nil {
		return
	}
	r.failed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// AddScanned records how many candidates a sweep pass examined.
func (r *ReconciliationMetrics) AddScanned(kind string, count int) {
	if r == nil || r.scanned == nil {
		return
	}
	r.scanned.WithLabelValues(normalizeLabel(kind)).Add(float64(count))
}

// IncUnknownIntent counts acknowledged events for untracked intents.
func (r *ReconciliationMetrics) IncUnknownIntent() {
	if r == nil || r.unmatched == nil {
		return
	}
	r.unmatched.Inc()
}
