package sweep

import (
	"fmt"
	"strings"
)

// Policy selects how previously persisted runs are cleared on resume.
type Policy int

const (
	// BulkReset deletes every persisted run >= the resume point before the
	// first run executes.
	BulkReset Policy = iota
	// PerRunReplace deletes the rows of a run immediately before writing it.
	PerRunReplace
)

func (p Policy) String() string {
	if p == PerRunReplace {
		return "per-run-replace"
	}
	return "bulk-reset"
}

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "bulk", "bulk-reset", "bulk_reset":
		return BulkReset, nil
	case "replace", "per-run", "per-run-replace", "per_run_replace":
		return PerRunReplace, nil
	}
	return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidResume, s)
}

// Options control one sweep.
type Options struct {
	// ResumeFrom skips runs below the given id. Nil starts fresh.
	ResumeFrom *int
	// ResumeAuto resumes after the highest completed run in the sink.
	ResumeAuto bool
	Policy     Policy
	// Only restricts execution to these run ids. It requires PerRunReplace.
	Only []int
	// MetadataOnly persists run rows and parameters without solving.
	MetadataOnly bool
	FailFast     bool
	// SuppressOutput disables every sink operation.
	SuppressOutput bool
	// Overwrite allows a fresh start over an existing run table.
	Overwrite bool
	Session   string
}

func (o Options) resuming() bool {
	return o.ResumeFrom != nil || o.ResumeAuto || len(o.Only) > 0
}

func (o Options) validate(runs int) error {
	if o.ResumeFrom != nil && o.ResumeAuto {
		return fmt.Errorf("%w: explicit and automatic resume are exclusive", ErrInvalidResume)
	}
	if o.ResumeFrom != nil && (*o.ResumeFrom < 0 || *o.ResumeFrom > runs) {
		return fmt.Errorf("%w: resume point %d outside [0,%d]", ErrInvalidResume, *o.ResumeFrom, runs)
	}
	if o.ResumeAuto && o.SuppressOutput {
		return fmt.Errorf("%w: automatic resume needs output", ErrInvalidResume)
	}
	if len(o.Only) > 0 && o.Policy != PerRunReplace {
		return fmt.Errorf("%w: run subsets require %s", ErrInvalidResume, PerRunReplace)
	}
	for _, id := range o.Only {
		if id < 0 || id >= runs {
			return fmt.Errorf("%w: run %d outside [0,%d)", ErrInvalidResume, id, runs)
		}
	}
	return nil
}
