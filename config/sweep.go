package config

import (
	"errors"
	"fmt"

	"github.com/kilianp07/gridsweep/core/energy"
	"github.com/kilianp07/gridsweep/core/scenario"
)

// AxisConfig declares one sweep axis.
type AxisConfig struct {
	Name  string `json:"name"`
	Steps int    `json:"steps"`
	// Generator is "unit-interval" (default) or "index".
	Generator string `json:"generator"`
}

// SweepConfig declares the run table and how its axes drive the model.
type SweepConfig struct {
	Axes     []AxisConfig        `json:"axes"`
	Filter   scenario.FilterSpec `json:"filter"`
	Bindings []energy.Binding    `json:"bindings"`
}

// ScenarioAxes converts the axis declarations.
func (c SweepConfig) ScenarioAxes() ([]scenario.Axis, error) {
	out := make([]scenario.Axis, len(c.Axes))
	for i, a := range c.Axes {
		gen := scenario.UnitInterval
		if a.Generator != "" {
			g, err := scenario.ParseGenerator(a.Generator)
			if err != nil {
				return nil, err
			}
			gen = g
		}
		out[i] = scenario.Axis{Name: a.Name, Steps: a.Steps, Generator: gen}
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Validate checks axes and that every binding names a declared axis.
func (c SweepConfig) Validate() error {
	if len(c.Axes) == 0 {
		return errors.New("at least one axis is required")
	}
	axes, err := c.ScenarioAxes()
	if err != nil {
		return err
	}
	known := make(map[string]scenario.Axis, len(axes))
	for _, a := range axes {
		known[a.Name] = a
	}
	for _, b := range c.Bindings {
		if err := b.Validate(); err != nil {
			return err
		}
		a, ok := known[b.Axis]
		if !ok {
			return fmt.Errorf("binding %s: unknown axis %q", b.Parameter, b.Axis)
		}
		if len(b.Values) > 0 && a.Generator != scenario.Index {
			return fmt.Errorf("binding %s: axis %s needs the index generator to select values", b.Parameter, b.Axis)
		}
		if len(b.Values) > 0 && len(b.Values) < a.Steps {
			return fmt.Errorf("binding %s: %d values for %d steps", b.Parameter, len(b.Values), a.Steps)
		}
	}
	return nil
}
