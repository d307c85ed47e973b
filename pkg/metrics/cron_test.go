package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	metrics.ObserveDuration("outbox-retention", 10*time.Millisecond)
	metrics.IncSuccess("outbox-retention")
	metrics.IncFailure("")
	metrics.SetStaleWithdrawals(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_success_total", "job", "outbox-retention"); err != nil || got != 1 {
		t.Fatalf("expected success=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_failure_total", "job", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unnamed failure under unknown, got %f (%v)", got, err)
	}
	mf := findMetricFamily(mfs, "ledger_stale_withdrawals")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatalf("expected stale withdrawal gauge")
	}
	if got := mf.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Fatalf("expected gauge=3, got %f", got)
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewCronJobMetrics(nil)
	metrics.IncSuccess("job")
	metrics.SetStaleWithdrawals(1)

	var nilMetrics *CronJobMetrics
	nilMetrics.IncFailure("job")
}
