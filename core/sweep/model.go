package sweep

import (
	"context"

	"github.com/kilianp07/gridsweep/core/metrics"
	"github.com/kilianp07/gridsweep/core/output"
)

// Status is the outcome of solving one run.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	Failed
	// NotSolved marks runs persisted in metadata-only mode.
	NotSolved
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return metrics.StatusOptimal
	case Infeasible:
		return metrics.StatusInfeasible
	case Unbounded:
		return metrics.StatusUnbounded
	case Failed:
		return metrics.StatusError
	case NotSolved:
		return "not_solved"
	}
	return "unknown"
}

// Persistable reports whether a run with this status is written to the sink.
func (s Status) Persistable() bool { return s == Optimal || s == NotSolved }

// Solution is the result of one solve.
type Solution struct {
	Status    Status
	Objective float64
	Tables    []output.Table
}

// Undo reverts the changes made by one Apply call.
type Undo func(ctx context.Context) error

// Model is the optimization object shared by all runs of a sweep. It is
// built once and mutated in place: Apply sets the parameters of one run and
// returns the inverse change, which the runner calls before the next run.
// Apply must leave the model unchanged when it returns an error.
type Model interface {
	Build(ctx context.Context) error
	Apply(ctx context.Context, values map[string]float64) (Undo, error)
	Solve(ctx context.Context) (Solution, error)
	// Parameters returns the derived parameter tables of the current run.
	Parameters() []output.Table
}
