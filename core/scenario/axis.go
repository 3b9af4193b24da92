// Package scenario builds the run table of a parameter sweep. Independent
// axes are expanded into their cross product, one run per combination, with
// dense run identifiers that stay dense after every filtering.
package scenario

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAxis reports an axis definition that cannot be expanded.
var ErrInvalidAxis = errors.New("invalid scenario axis")

// Generator selects how step values are derived from step indices.
type Generator int

const (
	// UnitInterval spreads values evenly over [0,1], both ends included.
	UnitInterval Generator = iota
	// Index uses the step index itself as value.
	Index
)

func (g Generator) String() string {
	switch g {
	case UnitInterval:
		return "unit-interval"
	case Index:
		return "index"
	default:
		return "unknown"
	}
}

// ParseGenerator converts a configuration string to a Generator.
func ParseGenerator(s string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit-interval", "unit_interval", "lin":
		return UnitInterval, nil
	case "index", "idx":
		return Index, nil
	default:
		return 0, fmt.Errorf("%w: unknown generator %q", ErrInvalidAxis, s)
	}
}

// Axis is one independent sweep dimension.
type Axis struct {
	Name      string
	Steps     int
	Generator Generator
}

// Value returns the step value for step index i.
func (a Axis) Value(i int) float64 {
	if a.Generator == Index {
		return float64(i)
	}
	if a.Steps <= 1 {
		return 0
	}
	return float64(i) / float64(a.Steps-1)
}

// Validate checks the axis definition.
func (a Axis) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAxis)
	}
	if a.Steps <= 0 {
		return fmt.Errorf("%w: %s has %d steps", ErrInvalidAxis, a.Name, a.Steps)
	}
	if a.Generator != UnitInterval && a.Generator != Index {
		return fmt.Errorf("%w: %s has unknown generator %d", ErrInvalidAxis, a.Name, int(a.Generator))
	}
	return nil
}
