package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"limitlesswork/core/events"
)

type eventMetrics struct {
	published *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics sink counting committed ledger events. It
// satisfies events.Emitter so it can sit beside the hub and the audit log.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = newEventMetrics()
		prometheus.MustRegister(eventRegistry.published)
	})
	return eventRegistry
}

func newEventMetrics() *eventMetrics {
	return &eventMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Count of committed events segmented by type.",
		}, []string{"type"}),
	}
}

// Emit implements events.Emitter.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := strings.ToLower(strings.TrimSpace(evt.EventType()))
	if eventType == "" {
		eventType = "unknown"
	}
	m.published.WithLabelValues(eventType).Inc()
}
