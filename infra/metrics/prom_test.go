package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
)

func TestPromSink_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	for _, ev := range []coremetrics.RunEvent{
		{RunID: 0, Status: coremetrics.StatusOptimal, Objective: 1440, Duration: 20 * time.Millisecond},
		{RunID: 1, Status: coremetrics.StatusInfeasible, Duration: 10 * time.Millisecond},
		{RunID: 2, Status: coremetrics.StatusOptimal, Objective: 2880, Duration: 30 * time.Millisecond},
	} {
		if err := sink.RecordRun(ev); err != nil {
			t.Fatalf("record error: %v", err)
		}
	}

	expected := `
# HELP sweep_runs_total Total number of executed runs by status
# TYPE sweep_runs_total counter
sweep_runs_total{status="infeasible"} 1
sweep_runs_total{status="optimal"} 2
`
	if err := testutil.CollectAndCompare(sink.runs, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.duration); c != 2 {
		t.Errorf("expected 2 duration series, got %d", c)
	}
	if v := testutil.ToFloat64(sink.objective); v != 2880 {
		t.Errorf("expected last objective 2880, got %v", v)
	}

	if err := sink.RecordSweep(coremetrics.SweepEvent{Completed: 2, Failed: 1}); err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if v := testutil.ToFloat64(sink.completed); v != 2 {
		t.Errorf("expected completed 2, got %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = first.RecordRun(coremetrics.RunEvent{Status: coremetrics.StatusOptimal})
	_ = second.RecordRun(coremetrics.RunEvent{Status: coremetrics.StatusOptimal})
	if v := testutil.ToFloat64(first.runs.WithLabelValues(coremetrics.StatusOptimal)); v != 2 {
		t.Errorf("expected shared counter at 2, got %v", v)
	}
}
