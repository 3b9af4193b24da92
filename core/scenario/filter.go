package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidFilter reports a declarative filter that cannot be compiled.
var ErrInvalidFilter = errors.New("invalid run filter")

// Clause matches runs by step id on one axis. Exactly one of In or NotIn
// must be set.
type Clause struct {
	Axis  string `json:"axis" yaml:"axis"`
	In    []int  `json:"in" yaml:"in"`
	NotIn []int  `json:"not_in" yaml:"not_in"`
}

// FilterSpec is a declarative run filter. Mode "any" keeps runs matching at
// least one clause, "all" keeps runs matching every clause.
type FilterSpec struct {
	Mode    string   `json:"mode" yaml:"mode"`
	Clauses []Clause `json:"clauses" yaml:"clauses"`
}

// Empty reports whether the spec has no clauses.
func (f FilterSpec) Empty() bool { return len(f.Clauses) == 0 }

// CompileFilter checks spec against the axes of m and returns the predicate.
// An empty spec keeps every run.
func CompileFilter(m *Matrix, spec FilterSpec) (func(Run) bool, error) {
	if spec.Empty() {
		return func(Run) bool { return true }, nil
	}
	mode := strings.ToLower(spec.Mode)
	if mode == "" {
		mode = "all"
	}
	if mode != "all" && mode != "any" {
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidFilter, spec.Mode)
	}
	preds := make([]func(Run) bool, 0, len(spec.Clauses))
	for _, c := range spec.Clauses {
		p, err := compileClause(m, c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if mode == "any" {
		return func(r Run) bool {
			for _, p := range preds {
				if p(r) {
					return true
				}
			}
			return false
		}, nil
	}
	return func(r Run) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}, nil
}

func compileClause(m *Matrix, c Clause) (func(Run) bool, error) {
	a, ok := m.Axis(c.Axis)
	if !ok {
		return nil, fmt.Errorf("%w: unknown axis %q", ErrInvalidFilter, c.Axis)
	}
	if (len(c.In) == 0) == (len(c.NotIn) == 0) {
		return nil, fmt.Errorf("%w: axis %s needs exactly one of in/not_in", ErrInvalidFilter, c.Axis)
	}
	ids := c.In
	want := true
	if len(c.NotIn) > 0 {
		ids = c.NotIn
		want = false
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		if id < 0 || id >= a.Steps {
			return nil, fmt.Errorf("%w: step %d out of range for axis %s", ErrInvalidFilter, id, a.Name)
		}
		set[id] = true
	}
	return func(r Run) bool {
		return set[r.StepID(a.Name)] == want
	}, nil
}
