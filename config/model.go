package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/gridsweep/core/energy"
	"github.com/kilianp07/gridsweep/core/timemap"
)

// Resolution gives the native and target sample lengths of a node in hours.
type Resolution struct {
	Native float64 `json:"native"`
	Target float64 `json:"target"`
}

// ModelConfig selects the system file and how it is laid out in time.
type ModelConfig struct {
	// Input is the YAML system file.
	Input      string   `json:"input"`
	Carriers   []string `json:"carriers"`
	Nodes      []string `json:"nodes"`
	PlantTypes []string `json:"plant_types"`
	// Resolutions maps a node to its sampling. The "*" entry applies to
	// every node without its own entry.
	Resolutions map[string]Resolution `json:"resolutions"`
	// Calendar restricts the represented part of the year.
	Calendar timemap.Filter `json:"calendar"`
	// Aggregation maps a profile kind to its aggregation rule.
	Aggregation      map[string]string `json:"aggregation"`
	ConstraintGroups []string          `json:"constraint_groups"`
	TransmissionCost float64           `json:"transmission_cost"`
	Tolerance        float64           `json:"tolerance"`
	MetadataOnly     bool              `json:"metadata_only"`
}

// SetDefaults fills unset fields.
func (c *ModelConfig) SetDefaults() {
	if len(c.Resolutions) == 0 {
		c.Resolutions = map[string]Resolution{"*": {Native: 1, Target: 1}}
	}
}

// Validate checks the model section.
func (c ModelConfig) Validate() error {
	if c.Input == "" {
		return errors.New("input is required")
	}
	for node, r := range c.Resolutions {
		if r.Native <= 0 || r.Target <= 0 {
			return fmt.Errorf("resolution of %s must be positive, got native=%g target=%g", node, r.Native, r.Target)
		}
	}
	if err := c.Calendar.Validate(); err != nil {
		return err
	}
	for kind, rule := range c.Aggregation {
		if _, err := timemap.ParseRule(rule); err != nil {
			return fmt.Errorf("aggregation of %s: %w", kind, err)
		}
	}
	if _, err := energy.ParseGroups(c.ConstraintGroups); err != nil {
		return err
	}
	return nil
}

// Profile returns the time profile of node.
func (c ModelConfig) Profile(node string) (timemap.Profile, error) {
	r, ok := c.Resolutions[node]
	if !ok {
		r, ok = c.Resolutions["*"]
	}
	if !ok {
		return timemap.Profile{}, fmt.Errorf("node %s has no resolution", node)
	}
	return timemap.Profile{Node: node, Native: r.Native, Target: r.Target}, nil
}

// Profiles returns the profiles of nodes sorted by node name.
func (c ModelConfig) Profiles(nodes []string) ([]timemap.Profile, error) {
	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)
	out := make([]timemap.Profile, 0, len(sorted))
	for _, n := range sorted {
		p, err := c.Profile(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Energy returns the model assembly settings.
func (c ModelConfig) Energy() energy.Config {
	return energy.Config{
		Select: energy.Selection{
			Carriers:   c.Carriers,
			Nodes:      c.Nodes,
			PlantTypes: c.PlantTypes,
		},
		Groups:           c.ConstraintGroups,
		Aggregation:      c.Aggregation,
		TransmissionCost: c.TransmissionCost,
		Tolerance:        c.Tolerance,
	}
}
