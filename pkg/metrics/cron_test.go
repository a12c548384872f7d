package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	const job = "subscription-batch"

	m.Observe(job, 250*time.Millisecond, nil)
	m.Observe(job, 100*time.Millisecond, nil)
	m.Observe(job, 50*time.Millisecond, errors.New("lock lost"))

	if got := testutil.ToFloat64(m.runs.WithLabelValues(job, "success")); got != 2 {
		t.Fatalf("success runs = %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(job, "failure")); got != 1 {
		t.Fatalf("failure runs = %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)); got <= 0 {
		t.Fatalf("last success not stamped: %v", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	sum, err := fetchHistogramSum(mfs, "af_cron_job_duration_seconds", "job", job)
	if err != nil {
		t.Fatal(err)
	}
	if sum < 0.39 || sum > 0.41 {
		t.Fatalf("duration sum = %v, want 0.4", sum)
	}
}

func TestCronJobMetricsNilIsNoop(t *testing.T) {
	var m *CronJobMetrics
	m.Observe("anything", time.Second, nil)
}

func TestCronJobMetricsLabelsUnnamedJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.Observe("", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", "failure")); got != 1 {
		t.Fatalf("unknown failure runs = %v", got)
	}
}
