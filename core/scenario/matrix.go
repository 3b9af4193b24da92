package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Step is the position of one run on one axis.
type Step struct {
	Axis  string
	ID    int
	Value float64
	// Label is empty until an external labeler assigns one.
	Label   string
	Labeled bool
}

// Run is one row of the run table.
type Run struct {
	ID    int
	Steps []Step
}

func (r Run) step(axis string) (Step, bool) {
	for _, s := range r.Steps {
		if s.Axis == axis {
			return s, true
		}
	}
	return Step{}, false
}

// StepID returns the step index on axis, or -1 if the run has no such axis.
func (r Run) StepID(axis string) int {
	s, ok := r.step(axis)
	if !ok {
		return -1
	}
	return s.ID
}

// Value returns the step value on axis and whether the axis exists.
func (r Run) Value(axis string) (float64, bool) {
	s, ok := r.step(axis)
	return s.Value, ok
}

// Label returns the step label on axis; ok is false when unset.
func (r Run) Label(axis string) (string, bool) {
	s, ok := r.step(axis)
	if !ok || !s.Labeled {
		return "", false
	}
	return s.Label, true
}

// Values maps axis names to step values.
func (r Run) Values() map[string]float64 {
	out := make(map[string]float64, len(r.Steps))
	for _, s := range r.Steps {
		out[s.Axis] = s.Value
	}
	return out
}

func (r Run) clone() Run {
	steps := make([]Step, len(r.Steps))
	copy(steps, r.Steps)
	return Run{ID: r.ID, Steps: steps}
}

// Matrix is the run table of a sweep. The first axis varies fastest: runs
// 0..n0-1 walk the first axis while every other axis stays at step 0.
type Matrix struct {
	axes []Axis
	runs []Run
}

// NewMatrix expands the axes into their Cartesian product.
func NewMatrix(axes ...Axis) (*Matrix, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: no axes", ErrInvalidAxis)
	}
	seen := make(map[string]bool, len(axes))
	total := 1
	for _, a := range axes {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("%w: duplicate axis %s", ErrInvalidAxis, a.Name)
		}
		seen[a.Name] = true
		total *= a.Steps
	}

	m := &Matrix{axes: append([]Axis(nil), axes...), runs: make([]Run, total)}
	idx := make([]int, len(axes))
	for row := 0; row < total; row++ {
		steps := make([]Step, len(axes))
		for j, a := range axes {
			steps[j] = Step{Axis: a.Name, ID: idx[j], Value: a.Value(idx[j])}
		}
		m.runs[row] = Run{Steps: steps}
		// odometer increment, first axis fastest
		for j := range idx {
			idx[j]++
			if idx[j] < axes[j].Steps {
				break
			}
			idx[j] = 0
		}
	}
	m.reindex()
	return m, nil
}

// reindex assigns dense run ids following row order. It must run after every
// operation that removes rows.
func (m *Matrix) reindex() {
	for i := range m.runs {
		m.runs[i].ID = i
	}
}

// Len returns the number of runs.
func (m *Matrix) Len() int { return len(m.runs) }

// Axes returns a copy of the axis definitions.
func (m *Matrix) Axes() []Axis { return append([]Axis(nil), m.axes...) }

// Axis returns the definition of the named axis.
func (m *Matrix) Axis(name string) (Axis, bool) {
	for _, a := range m.axes {
		if a.Name == name {
			return a, true
		}
	}
	return Axis{}, false
}

// Run returns the run with the given id.
func (m *Matrix) Run(id int) (Run, bool) {
	if id < 0 || id >= len(m.runs) {
		return Run{}, false
	}
	return m.runs[id].clone(), true
}

// Runs returns a copy of all runs in run id order.
func (m *Matrix) Runs() []Run {
	out := make([]Run, len(m.runs))
	for i, r := range m.runs {
		out[i] = r.clone()
	}
	return out
}

// Filter returns a new matrix holding the runs for which keep returns true,
// in their original relative order and with run ids rebuilt.
func (m *Matrix) Filter(keep func(Run) bool) *Matrix {
	out := &Matrix{axes: m.Axes()}
	for _, r := range m.runs {
		if keep(r.clone()) {
			out.runs = append(out.runs, r.clone())
		}
	}
	out.reindex()
	return out
}

// Label assigns labels on axis using fn. Steps for which fn reports false
// keep their current label state.
func (m *Matrix) Label(axis string, fn func(stepID int) (string, bool)) error {
	if _, ok := m.Axis(axis); !ok {
		return fmt.Errorf("%w: unknown axis %s", ErrInvalidAxis, axis)
	}
	for i := range m.runs {
		for j := range m.runs[i].Steps {
			s := &m.runs[i].Steps[j]
			if s.Axis != axis {
				continue
			}
			if lbl, ok := fn(s.ID); ok {
				s.Label = lbl
				s.Labeled = true
			}
		}
	}
	return nil
}

// Signature is a digest of the axis definitions and the step ids of every
// run. Two matrices with equal signatures assign the same meaning to every
// run id.
func (m *Matrix) Signature() string {
	var b strings.Builder
	for _, a := range m.axes {
		b.WriteString(a.Name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(a.Steps))
		b.WriteByte(':')
		b.WriteString(a.Generator.String())
		b.WriteByte(';')
	}
	b.WriteByte('|')
	for _, r := range m.runs {
		b.WriteString(strconv.Itoa(r.ID))
		for _, s := range r.Steps {
			b.WriteByte(',')
			b.WriteString(strconv.Itoa(s.ID))
		}
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
