package metrics

import "github.com/prometheus/client_golang/prometheus"

// Merge outcomes reported by SessionMetrics.IncMerge.
const (
	MergeOutcomeOpened   = "opened"
	MergeOutcomeMerged   = "merged"
	MergeOutcomeRejected = "rejected"
)

// SessionMetrics tracks table session mutations.
type SessionMetrics struct {
	merges   *prometheus.CounterVec
	retries  *prometheus.CounterVec
	receipts prometheus.Counter
	paid     prometheus.Counter
}

// NewSessionMetrics registers the session metrics on the provided registerer.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	if reg == nil {
		return &SessionMetrics{}
	}
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_merges_total",
		Help: "Order submissions applied to table sessions by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_update_retries_total",
		Help: "Optimistic concurrency retries by operation.",
	}, []string{"operation"})
	receipts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipts_issued_total",
		Help: "Receipts issued for table sessions.",
	})
	paid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_paid_total",
		Help: "Table sessions settled.",
	})
	reg.MustRegister(merges, retries, receipts, paid)
	return &SessionMetrics{
		merges:   merges,
		retries:  retries,
		receipts: receipts,
		paid:     paid,
	}
}

func (m *SessionMetrics) IncMerge(outcome string) {
	if m == nil || m.merges == nil {
		return
	}
	m.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SessionMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *SessionMetrics) IncReceipt() {
	if m == nil || m.receipts == nil {
		return
	}
	m.receipts.Inc()
}

func (m *SessionMetrics) IncPaid() {
	if m == nil || m.paid == nil {
		return
	}
	m.paid.Inc()
}
