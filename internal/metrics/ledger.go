package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records ledger mutation outcomes and persistence health.
type LedgerMetrics struct {
	mutations       *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	reseeds         *prometheus.CounterVec
	transactions    prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gudang_ledger_mutations_total",
		Help: "Ledger mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gudang_ledger_persist_failures_total",
		Help: "Failed writes of ledger state to the store.",
	}, []string{"key"})
	reseeds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gudang_ledger_reseeds_total",
		Help: "Times the ledger log was replaced by the seed log.",
	}, []string{"key"})
	transactions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gudang_ledger_transactions",
		Help: "Transactions currently held in the ledger log.",
	})
	reg.MustRegister(mutations, persistFailures, reseeds, transactions)
	return &LedgerMetrics{
		mutations:       mutations,
		persistFailures: persistFailures,
		reseeds:         reseeds,
		transactions:    transactions,
	}
}

// ObserveMutation counts one record, amend, remove, or import attempt.
func (m *LedgerMetrics) ObserveMutation(operation, outcome string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// SetTransactionCount sets the current log length.
func (m *LedgerMetrics) SetTransactionCount(n int) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.Set(float64(n))
}

// IncPersistFailure increments the persist failure counter for key.
func (m *LedgerMetrics) IncPersistFailure(key string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(key)).Inc()
}

// IncReseed increments the reseed counter for key.
func (m *LedgerMetrics) IncReseed(key string) {
	if m == nil || m.reseeds == nil {
		return
	}
	m.reseeds.WithLabelValues(normalizeLabel(key)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
