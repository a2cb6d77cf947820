package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "reservation-expiry"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.AddProcessed(job, 3)
	metrics.AddProcessed(job, 0)
	metrics.IncContended()
	metrics.IncContended()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	expectCounter(t, mfs, "foodrescue_cron_job_runs_total", 1, "job", job, "result", "success")
	expectCounter(t, mfs, "foodrescue_cron_job_runs_total", 1, "job", job, "result", "failure")
	expectCounter(t, mfs, "foodrescue_cron_lock_contended_total", 2)
	expectCounter(t, mfs, "foodrescue_cron_job_items_processed_total", 3, "job", job)

	if got, err := fetchHistogramSum(mfs, "foodrescue_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	cron.AddProcessed("x", 1)
	cron.IncContended()
	NewCronJobMetrics(nil).IncFailure("x")

	var res *ReservationMetrics
	res.ObserveInventory("reserve", "ok")
	res.ObserveCredit(true)
	NewReservationMetrics(nil).ObserveTransition("expired", "ok")

	var outbox *OutboxMetrics
	outbox.ObserveSettled("reservation_created", "published")
	outbox.ObserveLag(time.Now(), time.Now())
	NewOutboxMetrics(nil).ObserveDrain(time.Second)
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.ObserveSettled("reservation_created", "published")
	m.ObserveSettled("reservation_created", "published")
	m.ObserveSettled("reservation_picked_up", "dead_letter")
	m.ObserveDrain(20 * time.Millisecond)
	created := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	m.ObserveLag(created, created.Add(3*time.Second))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	expectCounter(t, mfs, "foodrescue_outbox_events_settled_total", 2, "event_type", "reservation_created", "outcome", "published")
	expectCounter(t, mfs, "foodrescue_outbox_events_settled_total", 1, "event_type", "reservation_picked_up", "outcome", "dead_letter")
	if got, err := fetchHistogramSum(mfs, "foodrescue_outbox_publish_lag_seconds"); err != nil {
		t.Fatalf("fetch lag: %v", err)
	} else if got != 3 {
		t.Fatalf("expected lag sum 3, got %f", got)
	}
}

func TestReservationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReservationMetrics(reg)
	m.ObserveInventory("reserve", "ok")
	m.ObserveInventory("reserve", "insufficient_quantity")
	m.ObserveInventory("reserve", "ok")
	m.ObserveTransition("picked-up", "ok")
	m.ObserveCredit(true)
	m.ObserveCredit(false)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	expectCounter(t, mfs, "foodrescue_inventory_operations_total", 2, "operation", "reserve", "outcome", "ok")
	expectCounter(t, mfs, "foodrescue_inventory_operations_total", 1, "operation", "reserve", "outcome", "insufficient_quantity")
	expectCounter(t, mfs, "foodrescue_reservation_transitions_total", 1, "to", "picked-up", "outcome", "ok")
	expectCounter(t, mfs, "foodrescue_impact_credits_total", 1, "result", "applied")
	expectCounter(t, mfs, "foodrescue_impact_credits_total", 1, "result", "duplicate")
}

func TestBlankLabelsReportUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewReservationMetrics(reg).ObserveInventory("", "ok")
	NewOutboxMetrics(reg).ObserveSettled("reservation_created", "")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	expectCounter(t, mfs, "foodrescue_inventory_operations_total", 1, "operation", "unknown", "outcome", "ok")
	expectCounter(t, mfs, "foodrescue_outbox_events_settled_total", 1, "event_type", "reservation_created", "outcome", "unknown")
}

func expectCounter(t *testing.T, mfs []*dto.MetricFamily, name string, want float64, labels ...string) {
	t.Helper()
	got, err := fetchCounterValue(mfs, name, labels...)
	if err != nil {
		t.Fatalf("fetch %s: %v", name, err)
	}
	if got != want {
		t.Fatalf("%s: expected %v, got %v", name, want, got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels ...string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels...) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels ...string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels...) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, kv ...string) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == kv[i] && pair.GetValue() == kv[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
