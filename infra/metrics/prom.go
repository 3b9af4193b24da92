package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
)

// PromSink records run outcomes in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	objective prometheus.Gauge
	completed prometheus.Gauge
}

// NewPromSink registers sweep metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_runs_total",
		Help: "Total number of executed runs by status",
	}, []string{"status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_run_duration_seconds",
		Help:    "Wall time of one run including persistence",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"status"})
	objective := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweep_last_objective",
		Help: "Objective value of the last optimal run",
	})
	completed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sweep_completed_runs",
		Help: "Number of runs completed by the last sweep",
	})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if objective, err = register(reg, objective); err != nil {
		return nil, err
	}
	if completed, err = register(reg, completed); err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, duration: duration, objective: objective, completed: completed}, nil
}

// register reuses an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts the run and observes its duration.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Status).Inc()
	s.duration.WithLabelValues(ev.Status).Observe(ev.Duration.Seconds())
	if ev.Status == coremetrics.StatusOptimal {
		s.objective.Set(ev.Objective)
	}
	return nil
}

// RecordSweep sets the completed runs gauge.
func (s *PromSink) RecordSweep(ev coremetrics.SweepEvent) error {
	s.completed.Set(float64(ev.Completed))
	return nil
}
