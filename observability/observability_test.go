package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"limitlesswork/core/events"
	"limitlesswork/core/types"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := newModuleMetrics()
	m.Observe("escrow", "escrow_get", 0, time.Millisecond)
	m.Observe("escrow", "escrow_get", -32004, time.Millisecond)
	m.RecordThrottle("market", "rate_limit")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("escrow", "escrow_get", "success")); got != 1 {
		t.Fatalf("success count = %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("escrow", "escrow_get", "-32004")); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("market", "rate_limit")); got != 1 {
		t.Fatalf("throttle count = %v", got)
	}
}

func TestEventMetricsCountByType(t *testing.T) {
	m := newEventMetrics()
	m.Emit(events.Wrap(&types.Event{Type: "escrow.created"}))
	m.Emit(events.Wrap(&types.Event{Type: "Escrow.Created"}))
	m.Emit(nil)
	if got := testutil.ToFloat64(m.published.WithLabelValues("escrow.created")); got != 2 {
		t.Fatalf("published = %v, want 2", got)
	}
}
