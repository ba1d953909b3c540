package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/histograms for the CRM sync flows.
type SyncMetrics struct {
	webhookTotal   *prometheus.CounterVec
	writebackTotal *prometheus.CounterVec
	lookupTotal    *prometheus.CounterVec
	routingTotal   *prometheus.CounterVec
	webhookLatency *prometheus.HistogramVec
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontline",
			Subsystem: "sync",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound Frontline webhooks",
		}, []string{"event_type", "status"}),
		writebackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontline",
			Subsystem: "sync",
			Name:      "crm_writeback_total",
			Help:      "Total CRM audit record creates",
		}, []string{"object", "status"}),
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontline",
			Subsystem: "sync",
			Name:      "directory_lookup_total",
			Help:      "Total customer directory lookups",
		}, []string{"operation", "outcome"}),
		routingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frontline",
			Subsystem: "sync",
			Name:      "routing_decision_total",
			Help:      "Total inbound routing decisions",
		}, []string{"outcome"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "frontline",
			Subsystem: "sync",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Frontline webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhookTotal, m.writebackTotal, m.lookupTotal, m.routingTotal, m.webhookLatency)
	return m
}

func (m *SyncMetrics) ObserveWebhook(eventType, status string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, status).Inc()
}

func (m *SyncMetrics) ObserveWriteback(object, status string) {
	if m == nil {
		return
	}
	m.writebackTotal.WithLabelValues(object, status).Inc()
}

func (m *SyncMetrics) ObserveLookup(operation, outcome string) {
	if m == nil {
		return
	}
	m.lookupTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SyncMetrics) ObserveRouting(outcome string) {
	if m == nil {
		return
	}
	m.routingTotal.WithLabelValues(outcome).Inc()
}

func (m *SyncMetrics) ObserveWebhookLatency(handler string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(handler).Observe(seconds)
}
