package metrics

import "time"

// Run statuses carried by RunEvent.
const (
	StatusOptimal    = "optimal"
	StatusInfeasible = "infeasible"
	StatusUnbounded  = "unbounded"
	StatusError      = "error"
	StatusSkipped    = "skipped"
)

// RunEvent describes the outcome of one run.
type RunEvent struct {
	Session   string
	RunID     int
	Status    string
	Objective float64
	Duration  time.Duration
	Err       string
	Time      time.Time
}

// Failed reports whether the run did not produce a solution.
func (e RunEvent) Failed() bool {
	return e.Status != StatusOptimal && e.Status != StatusSkipped
}

// RunRecorder records run outcomes.
type RunRecorder interface {
	RecordRun(ev RunEvent) error
}

// SweepEvent summarizes a finished sweep.
type SweepEvent struct {
	Session   string
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Time      time.Time
}

// SweepRecorder records sweep summaries.
type SweepRecorder interface {
	RecordSweep(ev SweepEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error     { return nil }
func (NopSink) RecordSweep(SweepEvent) error { return nil }

// MultiSink fans events out to several recorders.
type MultiSink struct {
	Sinks []RunRecorder
}

// NewMultiSink creates a MultiSink with the provided recorders.
func NewMultiSink(sinks ...RunRecorder) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the event to all recorders, returning the first error
// encountered.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordSweep forwards the summary to recorders that support it.
func (m *MultiSink) RecordSweep(ev SweepEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SweepRecorder); ok {
			if err := r.RecordSweep(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
