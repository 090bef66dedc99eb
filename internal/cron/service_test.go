package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/tableside/pkg/logger"
	"github.com/angelmondragon/tableside/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsAndRecordsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	skipped := &testJob{name: "idle", err: ErrSkip}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(success, failure, skipped),
		Metrics:  metrics.NewJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	service.runCycle(context.Background())

	for _, job := range []*testJob{success, failure, skipped} {
		if job.runs != 1 {
			t.Fatalf("expected %s to run once, ran %d", job.name, job.runs)
		}
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	series := 0
	for _, mf := range mfs {
		if mf.GetName() == "job_runs_total" {
			series = len(mf.GetMetric())
		}
	}
	if series != 3 {
		t.Fatalf("expected 3 job result series, got %d", series)
	}
}

func TestServiceRunCycleStopsOnCanceledContext(t *testing.T) {
	job := &testJob{name: "late"}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job)})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	service.runCycle(ctx)

	if job.runs != 0 {
		t.Fatalf("expected no runs after cancel, got %d", job.runs)
	}
}

func TestServiceRunReturnsOnCancel(t *testing.T) {
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := service.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewServiceRequiresLogger(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}
