package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hamiltonwise/signalsai-backend/internal/config"
	"github.com/Hamiltonwise/signalsai-backend/internal/pipeline"
)

type fakeRunner struct {
	daily   atomic.Int32
	monthly atomic.Int32
	audit   atomic.Int32
	err     error
}

func (f *fakeRunner) RunDailyAll(context.Context, time.Time) (*pipeline.Report, error) {
	f.daily.Add(1)
	return &pipeline.Report{Pipeline: "daily"}, f.err
}

func (f *fakeRunner) RunMonthlyAll(context.Context, time.Time) (*pipeline.Report, error) {
	f.monthly.Add(1)
	return &pipeline.Report{Pipeline: "monthly"}, f.err
}

func (f *fakeRunner) RunAudit(context.Context, time.Time, bool) (*pipeline.AuditReport, error) {
	f.audit.Add(1)
	return &pipeline.AuditReport{}, f.err
}

func TestStart_RejectsBadExpression(t *testing.T) {
	s := New(&fakeRunner{}, nil, nil, &config.SchedulerConfig{DailyCron: "not a cron"})
	if _, err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestStart_RegistersAndStops(t *testing.T) {
	s := New(&fakeRunner{}, nil, nil, &config.SchedulerConfig{})
	stop, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

func TestFire_RecordsFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("agents down")}
	s := New(runner, NewMetrics(prometheus.NewRegistry()), nil, &config.SchedulerConfig{})

	s.fire(context.Background(), "daily", func(ctx context.Context) error {
		_, err := runner.RunDailyAll(ctx, time.Now().UTC())
		return err
	})

	if runner.daily.Load() != 1 {
		t.Fatalf("daily calls = %d", runner.daily.Load())
	}
}

func TestFire_RecordsSuccess(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, NewMetrics(prometheus.NewRegistry()), nil, &config.SchedulerConfig{})

	s.fire(context.Background(), "audit", func(ctx context.Context) error {
		_, err := runner.RunAudit(ctx, time.Now().UTC(), false)
		return err
	})

	if runner.audit.Load() != 1 {
		t.Fatalf("audit calls = %d", runner.audit.Load())
	}
}
