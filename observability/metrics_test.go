package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func counterValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	if mf == nil {
		return 0
	}
next:
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				continue next
			}
		}
		return m.GetCounter().GetValue()
	}
	return 0
}

func TestMetricsRecordLedgerHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveOperation("ledger.buyCourse", "success", 10*time.Millisecond)
	m.ObserveOperation("ledger.buyCourse", "success", 20*time.Millisecond)
	m.ObserveOperation("ledger.buyCourse", "failed-precondition", time.Millisecond)
	m.IncConflict("ledger.createBooking")
	m.IncRetry("ledger.createBooking")
	m.AddReminders(3)
	m.AddReminders(0)
	m.IncRateLimited("/api/v1/bookings")

	fams := gather(t, reg)
	ops := fams["skillcoin_ledger_operations_total"]
	if got := counterValue(ops, map[string]string{"op": "ledger.buyCourse", "status": "success"}); got != 2 {
		t.Fatalf("success ops: want=2 got=%v", got)
	}
	if got := counterValue(ops, map[string]string{"status": "failed-precondition"}); got != 1 {
		t.Fatalf("failed ops: want=1 got=%v", got)
	}
	if got := counterValue(fams["skillcoin_ledger_conflicts_total"], nil); got != 1 {
		t.Fatalf("conflicts: want=1 got=%v", got)
	}
	if got := counterValue(fams["skillcoin_ledger_retries_total"], nil); got != 1 {
		t.Fatalf("retries: want=1 got=%v", got)
	}
	if got := counterValue(fams["skillcoin_jobs_booking_reminders_total"], nil); got != 3 {
		t.Fatalf("reminders: want=3 got=%v", got)
	}
	if got := counterValue(fams["skillcoin_http_rate_limited_total"], nil); got != 1 {
		t.Fatalf("rate limited: want=1 got=%v", got)
	}

	hist := fams["skillcoin_ledger_operation_duration_seconds"]
	if hist == nil || hist.GetMetric()[0].GetHistogram().GetSampleCount() != 3 {
		t.Fatalf("duration histogram: got %v", hist)
	}
}
