package timemap

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Rule combines the native samples of one slot. Flow-like quantities
// (power, prices) use Mean, quantity-like ones (energy) use Sum.
type Rule int

const (
	Mean Rule = iota
	Sum
	Max
	Min
)

func (r Rule) String() string {
	switch r {
	case Mean:
		return "mean"
	case Sum:
		return "sum"
	case Max:
		return "max"
	case Min:
		return "min"
	}
	return "unknown"
}

// ParseRule converts a configuration string to a Rule.
func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(s) {
	case "mean", "avg", "average":
		return Mean, nil
	case "sum":
		return Sum, nil
	case "max":
		return Max, nil
	case "min":
		return Min, nil
	}
	return 0, fmt.Errorf("unknown aggregation rule %q", s)
}

func (r Rule) combine(xs []float64) (float64, error) {
	switch r {
	case Mean:
		return stat.Mean(xs, nil), nil
	case Sum:
		return floats.Sum(xs), nil
	case Max:
		return floats.Max(xs), nil
	case Min:
		return floats.Min(xs), nil
	}
	return 0, fmt.Errorf("unknown aggregation rule %d", int(r))
}
