package energy

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownParameter reports a binding to a parameter the model does not
// expose, or a binding whose values cannot be applied.
var ErrUnknownParameter = errors.New("unknown model parameter")

// Parameter names a scenario-dependent model input.
type Parameter string

const (
	// CO2Price is added to the marginal cost of every plant, per tonne.
	CO2Price Parameter = "co2_price"
	// FuelPriceScale multiplies fuel costs, optionally of one plant type.
	FuelPriceScale Parameter = "fuel_price_scale"
	// DemandScale multiplies demand, optionally of one node.
	DemandScale Parameter = "demand_scale"
	// CapacityScale multiplies plant capacity, optionally of one plant type.
	CapacityScale Parameter = "capacity_scale"
	// TransmissionScale multiplies interconnect capacity.
	TransmissionScale Parameter = "transmission_scale"
	// EmissionCap limits yearly emissions in tonnes.
	EmissionCap Parameter = "emission_cap"
)

var parameters = map[Parameter]bool{
	CO2Price: true, FuelPriceScale: true, DemandScale: true,
	CapacityScale: true, TransmissionScale: true, EmissionCap: true,
}

// targeted parameters accept a Target restricting them to a plant type or
// node.
var targeted = map[Parameter]bool{FuelPriceScale: true, DemandScale: true, CapacityScale: true}

// Binding maps the step value of a sweep axis onto a model parameter. With
// Values the step value is an index into Values; otherwise it is
// interpolated linearly between Min and Max.
type Binding struct {
	Axis      string    `json:"axis"`
	Parameter Parameter `json:"parameter"`
	Target    string    `json:"target"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Values    []float64 `json:"values"`
	Labels    []string  `json:"labels"`
}

// Validate checks the parameter name and value lists.
func (b Binding) Validate() error {
	if b.Axis == "" {
		return fmt.Errorf("%w: binding without axis", ErrUnknownParameter)
	}
	if !parameters[b.Parameter] {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, b.Parameter)
	}
	if b.Target != "" && !targeted[b.Parameter] {
		return fmt.Errorf("%w: %s does not take a target", ErrUnknownParameter, b.Parameter)
	}
	if len(b.Labels) > 0 && len(b.Labels) != len(b.Values) && len(b.Values) > 0 {
		return fmt.Errorf("%w: %s has %d labels for %d values", ErrUnknownParameter, b.Axis, len(b.Labels), len(b.Values))
	}
	return nil
}

// Resolve converts a step value to the parameter value.
func (b Binding) Resolve(step float64) (float64, error) {
	if len(b.Values) == 0 {
		return b.Min + step*(b.Max-b.Min), nil
	}
	i := int(math.Round(step))
	if i < 0 || i >= len(b.Values) || math.Abs(step-float64(i)) > 1e-9 {
		return 0, fmt.Errorf("%w: axis %s step %g does not index %d values", ErrUnknownParameter, b.Axis, step, len(b.Values))
	}
	return b.Values[i], nil
}

// Label returns the label of a step id, if any.
func (b Binding) Label(stepID int) (string, bool) {
	if stepID < 0 || stepID >= len(b.Labels) {
		return "", false
	}
	return b.Labels[stepID], true
}

type paramKey struct {
	p      Parameter
	target string
}

// params holds the current value of every parameter. Scales default to 1,
// the emission cap to +Inf.
type params map[paramKey]float64

func defaultParams() params {
	return params{
		{CO2Price, ""}:          0,
		{FuelPriceScale, ""}:    1,
		{DemandScale, ""}:       1,
		{CapacityScale, ""}:     1,
		{TransmissionScale, ""}: 1,
		{EmissionCap, ""}:       math.Inf(1),
	}
}

func (p params) get(name Parameter) float64 { return p[paramKey{name, ""}] }

// scale returns the global scale times the target-specific one.
func (p params) scale(name Parameter, target string) float64 {
	v := p[paramKey{name, ""}]
	if t, ok := p[paramKey{name, target}]; ok && target != "" {
		v *= t
	}
	return v
}
