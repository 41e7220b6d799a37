package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSessionMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSessionMetrics(reg)
	m.IncMerge(MergeOutcomeOpened)
	m.IncMerge(MergeOutcomeMerged)
	m.IncMerge(MergeOutcomeMerged)
	m.IncRetry("merge")
	m.IncReceipt()
	m.IncPaid()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "session_merges_total", "outcome", MergeOutcomeMerged); err != nil {
		t.Fatalf("fetch merges: %v", err)
	} else if got != 2 {
		t.Fatalf("expected merged=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "session_update_retries_total", "operation", "merge"); err != nil {
		t.Fatalf("fetch retries: %v", err)
	} else if got != 1 {
		t.Fatalf("expected retries=1, got %f", got)
	}

	receipts := findMetricFamily(mfs, "receipts_issued_total")
	if receipts == nil || receipts.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one receipt, got %v", receipts)
	}
}

func TestNilSessionMetricsAreNoops(t *testing.T) {
	var m *SessionMetrics
	m.IncMerge(MergeOutcomeRejected)
	m.IncRetry("pay")
	m.IncReceipt()
	m.IncPaid()

	unregistered := NewSessionMetrics(nil)
	unregistered.IncPaid()
}
