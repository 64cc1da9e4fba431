package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics tracks gateway webhook ingestion outcomes at the boundary.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	duplicate prometheus.Counter
}

// NewWebhookMetrics registers the webhook ingest metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Gateway webhook deliveries by processing result.",
	}, []string{"result"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected_total",
		Help: "Gateway webhook deliveries rejected before processing.",
	}, []string{"reason"})
	duplicate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Gateway webhook deliveries acknowledged as duplicates.",
	})
	reg.MustRegister(received, rejected, duplicate)
	return &WebhookMetrics{
		received:  received,
		rejected:  rejected,
		duplicate: duplicate,
	}
}

// IncProcessed counts a delivery that reached the dispatcher.
func (w *WebhookMetrics) IncProcessed(result string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRejected counts a delivery rejected at the boundary.
func (w *WebhookMetrics) IncRejected(reason string) {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDuplicate counts a delivery acknowledged without reprocessing.
func (w *WebhookMetrics) IncDuplicate() {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.Inc()
}
