package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hamiltonwise/signalsai-backend/internal/stage"
)

// counterValue reads one labeled counter sample from the registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

// histogramSum reads one labeled histogram's sample sum from the registry.
func histogramSum(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) (float64, uint64) {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metric
				}
			}
			return m.GetHistogram().GetSampleSum(), m.GetHistogram().GetSampleCount()
		}
	}
	return 0, 0
}

func TestRunDaily_DurationsFollowInjectedClock(t *testing.T) {
	inv := newFakeInvoker()
	inv.respond(stage.Proofline, `{"highlight": "x"}`)
	store := NewInMemoryStore()
	reg := prometheus.NewRegistry()
	o := newTestOrchestrator(t, inv, store).WithMetrics(NewMetrics(reg))

	// Frozen clock: every observed duration must be exactly zero.
	frozen := time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC)
	o.now = func() time.Time { return frozen }

	outcome := o.RunDaily(context.Background(), testAccount(), frozen)
	if outcome.Status != OutcomeSuccess {
		t.Fatalf("outcome = %+v", outcome)
	}

	sum, count := histogramSum(t, reg, "signalsai_pipeline_run_duration_seconds", map[string]string{"pipeline": "daily"})
	if count != 1 {
		t.Fatalf("run duration samples = %d, want 1", count)
	}
	if sum != 0 {
		t.Errorf("run duration sum = %f, want 0 under a frozen clock", sum)
	}

	sum, count = histogramSum(t, reg, "signalsai_pipeline_stage_call_duration_seconds", map[string]string{"stage": stage.Proofline})
	if count != 1 {
		t.Fatalf("stage call duration samples = %d, want 1", count)
	}
	if sum != 0 {
		t.Errorf("stage call duration sum = %f, want 0 under a frozen clock", sum)
	}
}

func TestRunAudit_SkipsCountAsRuns(t *testing.T) {
	inv := newFakeInvoker()
	store := NewInMemoryStore()
	reg := prometheus.NewRegistry()
	o := newTestOrchestrator(t, inv, store).WithMetrics(NewMetrics(reg))

	report, err := o.RunAudit(context.Background(), time.Date(2025, 6, 5, 9, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Skipped {
		t.Fatalf("report = %+v, want skipped", report)
	}

	got := counterValue(t, reg, "signalsai_pipeline_runs_total", map[string]string{"pipeline": "audit", "status": "skipped"})
	if got != 1 {
		t.Errorf("runs_total{audit,skipped} = %f, want 1", got)
	}
}
