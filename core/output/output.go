// Package output defines the contract between the sweep and its result
// storage. A sink holds one run table per collection: a metadata record
// describing the run matrix plus, for every completed run, the rows of each
// table the run produced. A run counts as complete once its RunTable row is
// stored.
package output

import (
	"errors"
	"fmt"
	"time"
)

// RunTable is the name of the table holding one row per completed run.
const RunTable = "def_run"

var (
	// ErrNoMeta is returned by ReadMeta when the collection holds no run
	// table yet.
	ErrNoMeta = errors.New("no run table metadata")
	// ErrNotInitialized is returned by sink operations called before Init.
	ErrNotInitialized = errors.New("output sink not initialized")
)

// Table is a named set of rows sharing the same columns.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Validate checks that every row has one value per column.
func (t Table) Validate() error {
	if t.Name == "" {
		return errors.New("table without name")
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("table %s row %d: %d values for %d columns", t.Name, i, len(r), len(t.Columns))
		}
	}
	return nil
}

// Records converts the rows to column-keyed maps.
func (t Table) Records() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, r := range t.Rows {
		rec := make(map[string]any, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = r[j]
		}
		out[i] = rec
	}
	return out
}

// RunRange selects run ids From..To inclusive. A negative To means no upper
// bound.
type RunRange struct {
	From int
	To   int
}

// AllRuns selects every run.
func AllRuns() RunRange { return RunRange{From: 0, To: -1} }

// FromRun selects run ids >= id.
func FromRun(id int) RunRange { return RunRange{From: id, To: -1} }

// OnlyRun selects exactly one run id.
func OnlyRun(id int) RunRange { return RunRange{From: id, To: id} }

// Contains reports whether id is inside the range.
func (r RunRange) Contains(id int) bool {
	return id >= r.From && (r.To < 0 || id <= r.To)
}

func (r RunRange) String() string {
	if r.To < 0 {
		return fmt.Sprintf("[%d,∞)", r.From)
	}
	return fmt.Sprintf("[%d,%d]", r.From, r.To)
}

// Descriptor locates a collection inside a backend.
type Descriptor struct {
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Collection string `json:"collection"`
}

// Meta describes the run table stored in a collection.
type Meta struct {
	Signature string    `json:"signature"`
	Runs      int       `json:"runs"`
	Axes      []string  `json:"axes"`
	Session   string    `json:"session"`
	Created   time.Time `json:"created"`
}

// Record is one stored row read back from a sink.
type Record struct {
	RunID  int            `json:"run_id"`
	Values map[string]any `json:"values"`
}
