// Package energy is a small dispatch model used as the reference Model of a
// sweep. Plants at each node cover a per-slot demand for their carrier and
// interconnects move energy between nodes whose slot tables may differ in
// resolution. The model is solved as a linear program with gonum's simplex.
package energy

import (
	"errors"
	"fmt"
)

// ErrUnknownSelector reports a selection naming a carrier, node or plant
// type that the system does not define.
var ErrUnknownSelector = errors.New("unknown selector")

// Series kinds.
const (
	KindDemand       = "demand"
	KindAvailability = "availability"
)

// Plant is one dispatchable generator.
type Plant struct {
	Name     string  `json:"name" yaml:"name"`
	Node     string  `json:"node" yaml:"node"`
	Carrier  string  `json:"carrier" yaml:"carrier"`
	Type     string  `json:"type" yaml:"type"`
	Capacity float64 `json:"capacity" yaml:"capacity"`
	FuelCost float64 `json:"fuel_cost" yaml:"fuel_cost"`
	// CO2Intensity is in t/MWh.
	CO2Intensity float64 `json:"co2_intensity" yaml:"co2_intensity"`
}

// Interconnect is a lossless transmission line between two nodes.
type Interconnect struct {
	From      string  `json:"from" yaml:"from"`
	To        string  `json:"to" yaml:"to"`
	Carrier   string  `json:"carrier" yaml:"carrier"`
	CapExport float64 `json:"cap_export" yaml:"cap_export"`
	CapImport float64 `json:"cap_import" yaml:"cap_import"`
	// Monthly overrides both directions' capacity for the listed months.
	Monthly map[int]float64 `json:"monthly" yaml:"monthly"`
}

// Capacity returns the export and import limits for a month.
func (ic Interconnect) Capacity(month int) (exp, imp float64) {
	if v, ok := ic.Monthly[month]; ok {
		return v, v
	}
	return ic.CapExport, ic.CapImport
}

// GridLoss raises the demand of a node and carrier by Factor to account for
// distribution losses.
type GridLoss struct {
	Node    string  `json:"node" yaml:"node"`
	Carrier string  `json:"carrier" yaml:"carrier"`
	Factor  float64 `json:"factor" yaml:"factor"`
}

// Series is a full-year native-resolution profile. Demand series belong to a
// node and carrier; availability series scale a plant's capacity.
type Series struct {
	Kind        string    `json:"kind" yaml:"kind"`
	Node        string    `json:"node" yaml:"node"`
	Carrier     string    `json:"carrier" yaml:"carrier"`
	Plant       string    `json:"plant" yaml:"plant"`
	Aggregation string    `json:"aggregation" yaml:"aggregation"`
	Values      []float64 `json:"values" yaml:"values"`
}

// System is the static input of the model.
type System struct {
	Carriers      []string       `json:"carriers" yaml:"carriers"`
	PlantTypes    []string       `json:"plant_types" yaml:"plant_types"`
	Nodes         []string       `json:"nodes" yaml:"nodes"`
	Plants        []Plant        `json:"plants" yaml:"plants"`
	Interconnects []Interconnect `json:"interconnects" yaml:"interconnects"`
	Series        []Series       `json:"series" yaml:"series"`
	GridLosses    []GridLoss     `json:"grid_losses" yaml:"grid_losses"`
}

// Validate checks references between the system's records.
func (s System) Validate() error {
	nodes, carriers, types := set(s.Nodes), set(s.Carriers), set(s.PlantTypes)
	plants := map[string]bool{}
	for _, p := range s.Plants {
		if p.Name == "" || plants[p.Name] {
			return fmt.Errorf("plant %q: empty or duplicate name", p.Name)
		}
		plants[p.Name] = true
		if !nodes[p.Node] || !carriers[p.Carrier] || !types[p.Type] {
			return fmt.Errorf("plant %s: undefined node, carrier or type (%s, %s, %s)", p.Name, p.Node, p.Carrier, p.Type)
		}
		if p.Capacity < 0 {
			return fmt.Errorf("plant %s: negative capacity", p.Name)
		}
	}
	for _, ic := range s.Interconnects {
		if !nodes[ic.From] || !nodes[ic.To] || ic.From == ic.To {
			return fmt.Errorf("interconnect %s-%s: invalid nodes", ic.From, ic.To)
		}
		if !carriers[ic.Carrier] {
			return fmt.Errorf("interconnect %s-%s: undefined carrier %s", ic.From, ic.To, ic.Carrier)
		}
	}
	losses := map[nodeCarrier]bool{}
	for _, gl := range s.GridLosses {
		if !nodes[gl.Node] || !carriers[gl.Carrier] {
			return fmt.Errorf("grid loss %s/%s: undefined node or carrier", gl.Node, gl.Carrier)
		}
		if gl.Factor < 0 {
			return fmt.Errorf("grid loss %s/%s: negative factor", gl.Node, gl.Carrier)
		}
		key := nodeCarrier{gl.Node, gl.Carrier}
		if losses[key] {
			return fmt.Errorf("grid loss %s/%s: defined twice", gl.Node, gl.Carrier)
		}
		losses[key] = true
	}
	for _, sr := range s.Series {
		switch sr.Kind {
		case KindDemand:
			if !nodes[sr.Node] || !carriers[sr.Carrier] {
				return fmt.Errorf("demand series %s/%s: undefined node or carrier", sr.Node, sr.Carrier)
			}
		case KindAvailability:
			if !plants[sr.Plant] {
				return fmt.Errorf("availability series: undefined plant %q", sr.Plant)
			}
		default:
			return fmt.Errorf("series kind %q not supported", sr.Kind)
		}
	}
	return nil
}

// Selection restricts a system to subsets of carriers, nodes and plant
// types. Empty lists keep everything.
type Selection struct {
	Carriers   []string `json:"carriers"`
	Nodes      []string `json:"nodes"`
	PlantTypes []string `json:"plant_types"`
}

// Select returns the part of s covered by sel.
func Select(s System, sel Selection) (System, error) {
	pick := func(kind string, all, want []string) (map[string]bool, []string, error) {
		if len(want) == 0 {
			return set(all), append([]string(nil), all...), nil
		}
		known := set(all)
		for _, w := range want {
			if !known[w] {
				return nil, nil, fmt.Errorf("%w: %s %q", ErrUnknownSelector, kind, w)
			}
		}
		return set(want), append([]string(nil), want...), nil
	}
	carriers, cl, err := pick("carrier", s.Carriers, sel.Carriers)
	if err != nil {
		return System{}, err
	}
	nodes, nl, err := pick("node", s.Nodes, sel.Nodes)
	if err != nil {
		return System{}, err
	}
	types, tl, err := pick("plant type", s.PlantTypes, sel.PlantTypes)
	if err != nil {
		return System{}, err
	}

	out := System{Carriers: cl, Nodes: nl, PlantTypes: tl}
	kept := map[string]bool{}
	for _, p := range s.Plants {
		if nodes[p.Node] && carriers[p.Carrier] && types[p.Type] {
			out.Plants = append(out.Plants, p)
			kept[p.Name] = true
		}
	}
	for _, ic := range s.Interconnects {
		if nodes[ic.From] && nodes[ic.To] && carriers[ic.Carrier] {
			out.Interconnects = append(out.Interconnects, ic)
		}
	}
	for _, gl := range s.GridLosses {
		if nodes[gl.Node] && carriers[gl.Carrier] {
			out.GridLosses = append(out.GridLosses, gl)
		}
	}
	for _, sr := range s.Series {
		switch sr.Kind {
		case KindDemand:
			if nodes[sr.Node] && carriers[sr.Carrier] {
				out.Series = append(out.Series, sr)
			}
		case KindAvailability:
			if kept[sr.Plant] {
				out.Series = append(out.Series, sr)
			}
		}
	}
	return out, nil
}

func set(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}
