package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks marketplace operations applied by the processor.
type MarketMetrics struct {
	transactions  *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	escrowsOpened prometheus.Counter
	releases      prometheus.Counter
	disputes      prometheus.Counter
	resolutions   *prometheus.CounterVec
	distributed   *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide marketplace metrics registry.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = newMarketMetrics()
		prometheus.MustRegister(
			marketRegistry.transactions,
			marketRegistry.rejected,
			marketRegistry.escrowsOpened,
			marketRegistry.releases,
			marketRegistry.disputes,
			marketRegistry.resolutions,
			marketRegistry.distributed,
		)
	})
	return marketRegistry
}

func newMarketMetrics() *MarketMetrics {
	return &MarketMetrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Name:      "transactions_total",
			Help:      "Committed transactions segmented by type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Name:      "rejected_total",
			Help:      "Rejected transactions segmented by type and error kind.",
		}, []string{"type", "kind"}),
		escrowsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "escrow",
			Name:      "created_total",
			Help:      "Escrows funded by clients.",
		}),
		releases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "escrow",
			Name:      "released_total",
			Help:      "Escrows released to freelancers on client approval.",
		}),
		disputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "dispute",
			Name:      "opened_total",
			Help:      "Disputes opened against active escrows.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "dispute",
			Name:      "resolved_total",
			Help:      "Arbitrated resolutions segmented by outcome.",
		}, []string{"outcome"}),
		distributed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "escrow",
			Name:      "distributed_amount_total",
			Help:      "Currency paid out of escrow vaults segmented by recipient class.",
		}, []string{"recipient"}),
	}
}

// ObserveTransaction records a committed transaction of the given type.
func (m *MarketMetrics) ObserveTransaction(txType string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(normalize(txType)).Inc()
}

// ObserveRejected records a rejected transaction and the kind of its error.
func (m *MarketMetrics) ObserveRejected(txType, kind string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(normalize(txType), normalize(kind)).Inc()
}

// ObserveEscrowCreated counts a funded escrow.
func (m *MarketMetrics) ObserveEscrowCreated() {
	if m == nil {
		return
	}
	m.escrowsOpened.Inc()
}

// ObserveRelease counts a client-approved release.
func (m *MarketMetrics) ObserveRelease() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

// ObserveDisputeOpened counts a newly opened dispute.
func (m *MarketMetrics) ObserveDisputeOpened() {
	if m == nil {
		return
	}
	m.disputes.Inc()
}

// ObserveResolution counts an arbitrated outcome.
func (m *MarketMetrics) ObserveResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(normalize(outcome)).Inc()
}

// ObservePayout adds the shares of one distribution to the payout totals.
func (m *MarketMetrics) ObservePayout(client, freelancer, platform, referrer uint64) {
	if m == nil {
		return
	}
	m.distributed.WithLabelValues("client").Add(float64(client))
	m.distributed.WithLabelValues("freelancer").Add(float64(freelancer))
	m.distributed.WithLabelValues("platform").Add(float64(platform))
	m.distributed.WithLabelValues("referrer").Add(float64(referrer))
}

func normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "unknown"
	}
	return label
}
