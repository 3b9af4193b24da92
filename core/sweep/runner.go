// Package sweep executes the runs of a scenario matrix against one shared
// model and persists the results through an output sink. Runs execute in
// increasing run id order; a sweep can be resumed from any run id, either
// clearing everything after the resume point up front or replacing runs one
// by one as they are re-executed.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/gridsweep/core/logger"
	"github.com/kilianp07/gridsweep/core/metrics"
	"github.com/kilianp07/gridsweep/core/output"
	"github.com/kilianp07/gridsweep/core/scenario"
	"github.com/kilianp07/gridsweep/internal/eventbus"
)

var (
	// ErrRunFailed aborts a fail-fast sweep on the first failed run.
	ErrRunFailed = errors.New("run failed")
	// ErrModelState reports a shared model that could not be restored.
	ErrModelState = errors.New("model state corrupted")
	// ErrSink wraps output failures.
	ErrSink = errors.New("output sink failure")
	// ErrShapeMismatch reports a persisted run table that does not match
	// the matrix being resumed.
	ErrShapeMismatch = errors.New("run table shape mismatch")
	// ErrOutputExists refuses a fresh start over an existing run table.
	ErrOutputExists = errors.New("run table already exists")
	// ErrInvalidResume reports inconsistent resume options.
	ErrInvalidResume = errors.New("invalid resume options")
)

// RunResult is the outcome of one executed run.
type RunResult struct {
	RunID     int
	Status    Status
	Objective float64
	Duration  time.Duration
	Err       error
}

// Report summarizes a sweep.
type Report struct {
	Session  string
	Total    int
	ResumeAt int
	Skipped  int
	Results  []RunResult
	Duration time.Duration
}

// Completed returns the number of runs that were persisted or would have
// been with output enabled.
func (r Report) Completed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Status.Persistable() {
			n++
		}
	}
	return n
}

// Failed returns the ids of failed runs.
func (r Report) Failed() []int {
	var out []int
	for _, res := range r.Results {
		if res.Err != nil || !res.Status.Persistable() {
			out = append(out, res.RunID)
		}
	}
	return out
}

// Runner drives a Model through the runs of a matrix.
type Runner struct {
	model Model
	sink  output.Sink
	opts  Options
	log   logger.Logger
	bus   *eventbus.TypedBus[metrics.RunEvent]
	built bool
	now   func() time.Time
}

// NewRunner returns a runner writing to sink. sink may be nil when
// opts.SuppressOutput is set.
func NewRunner(model Model, sink output.Sink, opts Options, log logger.Logger) *Runner {
	return &Runner{model: model, sink: sink, opts: opts, log: log, now: time.Now}
}

// SetEventBus configures the bus receiving one RunEvent per executed run.
func (r *Runner) SetEventBus(bus *eventbus.TypedBus[metrics.RunEvent]) {
	r.bus = bus
}

// Run executes the matrix. Per-run solve failures are recorded in the
// report; the returned error is non-nil only when the sweep stopped early.
func (r *Runner) Run(ctx context.Context, m *scenario.Matrix) (Report, error) {
	start := r.now()
	rep := Report{Session: r.opts.Session, Total: m.Len()}
	if err := r.opts.validate(m.Len()); err != nil {
		return rep, err
	}
	if !r.opts.SuppressOutput && r.sink == nil {
		return rep, fmt.Errorf("%w: no sink configured", ErrSink)
	}
	if !r.built {
		if err := r.model.Build(ctx); err != nil {
			return rep, fmt.Errorf("build model: %w", err)
		}
		r.built = true
	}

	resume, err := r.prepare(ctx, m)
	if err != nil {
		return rep, err
	}
	rep.ResumeAt = resume
	only := make(map[int]bool, len(r.opts.Only))
	for _, id := range r.opts.Only {
		only[id] = true
	}
	r.log.Infof("sweep %s: %d runs, resuming at %d (%s)", rep.Session, m.Len(), resume, r.opts.Policy)

	for _, run := range m.Runs() {
		if run.ID < resume || (len(only) > 0 && !only[run.ID]) {
			rep.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			rep.Duration = r.now().Sub(start)
			return rep, fmt.Errorf("sweep interrupted before run %d: %w", run.ID, err)
		}
		res, err := r.execute(ctx, m, run)
		rep.Results = append(rep.Results, res)
		if err != nil {
			rep.Duration = r.now().Sub(start)
			return rep, err
		}
		if r.opts.FailFast && (res.Err != nil || !res.Status.Persistable()) {
			rep.Duration = r.now().Sub(start)
			return rep, fmt.Errorf("%w: run %d: %s", ErrRunFailed, run.ID, describe(res))
		}
	}
	rep.Duration = r.now().Sub(start)
	r.log.Infof("sweep %s finished: %d completed, %d failed, %d skipped in %s",
		rep.Session, rep.Completed(), len(rep.Failed()), rep.Skipped, rep.Duration)
	return rep, nil
}

// prepare checks the persisted run table against the matrix, performs the
// bulk deletions and returns the resume point.
func (r *Runner) prepare(ctx context.Context, m *scenario.Matrix) (int, error) {
	resume := 0
	if r.opts.ResumeFrom != nil {
		resume = *r.opts.ResumeFrom
	}
	if r.opts.SuppressOutput {
		return resume, nil
	}

	meta, err := r.sink.ReadMeta(ctx)
	exists := true
	if errors.Is(err, output.ErrNoMeta) {
		exists = false
	} else if err != nil {
		return 0, fmt.Errorf("%w: read metadata: %v", ErrSink, err)
	}

	if !r.opts.resuming() {
		if exists {
			if !r.opts.Overwrite {
				return 0, fmt.Errorf("%w: %d runs stored (signature %s)", ErrOutputExists, meta.Runs, meta.Signature)
			}
			r.log.Warnf("overwriting existing run table with %d runs", meta.Runs)
			if err := r.sink.DeleteRuns(ctx, output.AllRuns()); err != nil {
				return 0, fmt.Errorf("%w: clear runs: %v", ErrSink, err)
			}
		}
		return 0, r.writeMeta(ctx, m)
	}

	if !exists {
		if resume > 0 {
			return 0, fmt.Errorf("%w: nothing stored to resume at run %d", ErrShapeMismatch, resume)
		}
		return 0, r.writeMeta(ctx, m)
	}
	if meta.Signature != m.Signature() || meta.Runs != m.Len() {
		return 0, fmt.Errorf("%w: stored %d runs (signature %s), matrix has %d (signature %s)",
			ErrShapeMismatch, meta.Runs, meta.Signature, m.Len(), m.Signature())
	}

	if r.opts.ResumeAuto {
		done, err := r.sink.Runs(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: list runs: %v", ErrSink, err)
		}
		if len(done) > 0 {
			resume = done[len(done)-1] + 1
		}
		if gaps := resume - len(done); gaps > 0 {
			r.log.Warnf("%d runs below %d are missing and stay missing; re-execute them with a run subset", gaps, resume)
		}
	}
	if r.opts.Policy == BulkReset {
		r.log.Infof("deleting stored runs %s", output.FromRun(resume))
		if err := r.sink.DeleteRuns(ctx, output.FromRun(resume)); err != nil {
			return 0, fmt.Errorf("%w: delete runs from %d: %v", ErrSink, resume, err)
		}
	}
	return resume, nil
}

func (r *Runner) writeMeta(ctx context.Context, m *scenario.Matrix) error {
	axes := m.Axes()
	names := make([]string, len(axes))
	for i, a := range axes {
		names[i] = a.Name
	}
	meta := output.Meta{
		Signature: m.Signature(),
		Runs:      m.Len(),
		Axes:      names,
		Session:   r.opts.Session,
		Created:   r.now().UTC(),
	}
	if err := r.sink.WriteMeta(ctx, meta); err != nil {
		return fmt.Errorf("%w: write metadata: %v", ErrSink, err)
	}
	return nil
}

// execute runs one row: apply, solve, persist, undo. The returned error is
// fatal for the sweep; per-run failures are carried in RunResult.Err.
func (r *Runner) execute(ctx context.Context, m *scenario.Matrix, run scenario.Run) (RunResult, error) {
	t0 := r.now()
	res := RunResult{RunID: run.ID}

	undo, err := r.model.Apply(ctx, run.Values())
	if err != nil {
		res.Status, res.Err = Failed, fmt.Errorf("apply: %w", err)
		res.Duration = r.now().Sub(t0)
		r.report(res)
		return res, nil
	}

	var sol Solution
	if r.opts.MetadataOnly {
		sol = Solution{Status: NotSolved}
	} else {
		sol, err = r.model.Solve(ctx)
		if err != nil {
			sol.Status = Failed
			res.Err = err
		}
	}
	res.Status, res.Objective = sol.Status, sol.Objective
	res.Duration = r.now().Sub(t0)

	var fatal error
	if res.Err == nil && sol.Status.Persistable() && !r.opts.SuppressOutput {
		tables := append(r.model.Parameters(), sol.Tables...)
		tables = append(tables, r.runRow(m, run, res))
		fatal = r.persist(ctx, run.ID, tables)
	}

	if undo != nil {
		if err := undo(ctx); err != nil {
			return res, fmt.Errorf("%w: undo run %d: %v", ErrModelState, run.ID, err)
		}
	}
	if fatal != nil {
		return res, fatal
	}
	r.report(res)
	return res, nil
}

func (r *Runner) persist(ctx context.Context, id int, tables []output.Table) error {
	if r.opts.Policy == PerRunReplace {
		if err := r.sink.DeleteRuns(ctx, output.OnlyRun(id)); err != nil {
			return fmt.Errorf("%w: replace run %d: %v", ErrSink, id, err)
		}
	}
	if err := r.sink.WriteRun(ctx, id, tables); err != nil {
		return fmt.Errorf("%w: write run %d: %v", ErrSink, id, err)
	}
	return nil
}

// runRow builds the def_run row: run id, then id, value and label per axis,
// then the run outcome.
func (r *Runner) runRow(m *scenario.Matrix, run scenario.Run, res RunResult) output.Table {
	t := output.Table{Name: output.RunTable, Columns: []string{"run_id"}}
	row := []any{run.ID}
	for _, a := range m.Axes() {
		t.Columns = append(t.Columns, a.Name+"_id", a.Name+"_vl", a.Name+"_lb")
		v, _ := run.Value(a.Name)
		var label any
		if l, ok := run.Label(a.Name); ok {
			label = l
		}
		row = append(row, run.StepID(a.Name), v, label)
	}
	t.Columns = append(t.Columns, "status", "objective", "seconds", "session")
	row = append(row, res.Status.String(), res.Objective, res.Duration.Seconds(), r.opts.Session)
	t.Rows = [][]any{row}
	return t
}

func (r *Runner) report(res RunResult) {
	if res.Err != nil || !res.Status.Persistable() {
		r.log.Warnf("run %d failed: %s", res.RunID, describe(res))
	} else {
		r.log.Debugw("run done", logger.Fields{
			"run_id":    res.RunID,
			"status":    res.Status.String(),
			"objective": res.Objective,
			"seconds":   res.Duration.Seconds(),
		})
	}
	ev := metrics.RunEvent{
		Session:   r.opts.Session,
		RunID:     res.RunID,
		Status:    res.Status.String(),
		Objective: res.Objective,
		Duration:  res.Duration,
		Time:      r.now(),
	}
	if res.Err != nil {
		ev.Err = res.Err.Error()
	}
	r.bus.Publish(ev)
}

func describe(res RunResult) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return res.Status.String()
}

// SortedOnly returns a sorted copy of ids without duplicates.
func SortedOnly(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}
