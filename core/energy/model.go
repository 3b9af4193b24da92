package energy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kilianp07/gridsweep/core/logger"
	"github.com/kilianp07/gridsweep/core/output"
	"github.com/kilianp07/gridsweep/core/sweep"
	"github.com/kilianp07/gridsweep/core/timemap"
	"github.com/kilianp07/gridsweep/core/transmission"
)

const (
	defaultTransmissionCost = 0.01
	defaultTolerance        = 1e-8
)

// Config tunes model assembly.
type Config struct {
	Select Selection `json:"select"`
	// Groups lists the active constraint groups. Empty selects all.
	Groups []string `json:"constraint_groups"`
	// Aggregation maps a series kind to its aggregation rule. A rule set on
	// the series itself takes precedence.
	Aggregation map[string]string `json:"aggregation"`
	// TransmissionCost is charged per MWh moved in either direction.
	TransmissionCost float64 `json:"transmission_cost"`
	Tolerance        float64 `json:"tolerance"`
}

type nodeCarrier struct{ node, carrier string }

// aligned pairs an interconnect with the slot correspondence of its nodes.
type aligned struct {
	ic   Interconnect
	link transmission.Link
	// fine lists the fine slots carrying flow variables, in time order.
	fine    []int
	finePos map[int]int
}

// Model implements sweep.Model.
type Model struct {
	sys      System
	cfg      Config
	groups   []Group
	maps     map[string]*timemap.Map
	links    []aligned
	bindings map[string]Binding
	losses   map[nodeCarrier]float64
	log      logger.Logger

	built  bool
	demand map[nodeCarrier][]float64
	avail  map[string][]float64
	p      params
}

var _ sweep.Model = (*Model)(nil)

// NewModel validates the system against the time maps, links and bindings.
// Every interconnect needs a link aligned for its node pair.
func NewModel(sys System, maps map[string]*timemap.Map, links []transmission.Link, bindings []Binding, cfg Config, log logger.Logger) (*Model, error) {
	sys, err := Select(sys, cfg.Select)
	if err != nil {
		return nil, err
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	groups, err := ParseGroups(cfg.Groups)
	if err != nil {
		return nil, err
	}
	if cfg.TransmissionCost == 0 {
		cfg.TransmissionCost = defaultTransmissionCost
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaultTolerance
	}

	m := &Model{sys: sys, cfg: cfg, groups: groups, maps: maps, bindings: map[string]Binding{}, losses: map[nodeCarrier]float64{}, log: log, p: defaultParams()}
	for _, gl := range sys.GridLosses {
		m.losses[nodeCarrier{gl.Node, gl.Carrier}] = gl.Factor
	}
	for _, n := range sys.Nodes {
		if maps[n] == nil {
			return nil, fmt.Errorf("node %s has no time map", n)
		}
	}
	for _, ic := range sys.Interconnects {
		a, err := alignFor(ic, links)
		if err != nil {
			return nil, err
		}
		m.links = append(m.links, a)
	}

	types, nodes := set(sys.PlantTypes), set(sys.Nodes)
	for _, b := range bindings {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.bindings[b.Axis]; dup {
			return nil, fmt.Errorf("%w: axis %s bound twice", ErrUnknownParameter, b.Axis)
		}
		if b.Target != "" {
			known := types
			if b.Parameter == DemandScale {
				known = nodes
			}
			if !known[b.Target] {
				return nil, fmt.Errorf("%w: %s target %q", ErrUnknownSelector, b.Parameter, b.Target)
			}
		}
		m.bindings[b.Axis] = b
	}
	return m, nil
}

func alignFor(ic Interconnect, links []transmission.Link) (aligned, error) {
	for _, l := range links {
		if (l.From == ic.From && l.To == ic.To) || (l.From == ic.To && l.To == ic.From) {
			a := aligned{ic: ic, link: l, finePos: map[int]int{}}
			for _, e := range l.Entries {
				for _, o := range e.Fine {
					a.finePos[o.Slot] = len(a.fine)
					a.fine = append(a.fine, o.Slot)
				}
			}
			return a, nil
		}
	}
	return aligned{}, fmt.Errorf("%w: no slot alignment for %s-%s", transmission.ErrMisaligned, ic.From, ic.To)
}

// Groups returns the active constraint groups.
func (m *Model) Groups() []Group { return append([]Group(nil), m.groups...) }

// Build aggregates every series onto its node's slot table.
func (m *Model) Build(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.demand = map[nodeCarrier][]float64{}
	m.avail = map[string][]float64{}
	plantNode := map[string]string{}
	for _, p := range m.sys.Plants {
		plantNode[p.Name] = p.Node
	}
	for _, s := range m.sys.Series {
		node := s.Node
		if s.Kind == KindAvailability {
			node = plantNode[s.Plant]
		}
		rule, err := m.rule(s)
		if err != nil {
			return err
		}
		vals, err := m.maps[node].Aggregate(s.Values, rule)
		if err != nil {
			return fmt.Errorf("%s series for %s: %w", s.Kind, node, err)
		}
		switch s.Kind {
		case KindDemand:
			key := nodeCarrier{s.Node, s.Carrier}
			if acc, ok := m.demand[key]; ok {
				for i := range acc {
					acc[i] += vals[i]
				}
			} else {
				m.demand[key] = vals
			}
		case KindAvailability:
			m.avail[s.Plant] = vals
		}
	}
	m.built = true
	m.log.Infof("model built: %d nodes, %d plants, %d interconnects, groups %v",
		len(m.sys.Nodes), len(m.sys.Plants), len(m.links), m.groups)
	return nil
}

func (m *Model) rule(s Series) (timemap.Rule, error) {
	name := s.Aggregation
	if name == "" {
		name = m.cfg.Aggregation[s.Kind]
	}
	if name == "" {
		return timemap.Mean, nil
	}
	return timemap.ParseRule(name)
}

type change struct {
	key      paramKey
	old      float64
	had, set bool
	val      float64
}

// Apply sets the parameters bound to the given axes. Axes without a binding
// are ignored.
func (m *Model) Apply(_ context.Context, values map[string]float64) (sweep.Undo, error) {
	axes := make([]string, 0, len(values))
	for a := range values {
		axes = append(axes, a)
	}
	sort.Strings(axes)

	var changes []change
	for _, a := range axes {
		b, ok := m.bindings[a]
		if !ok {
			continue
		}
		v, err := b.Resolve(values[a])
		if err != nil {
			return nil, err
		}
		changes = append(changes, change{key: paramKey{b.Parameter, b.Target}, val: v})
	}
	for i := range changes {
		c := &changes[i]
		c.old, c.had = m.p[c.key]
		m.p[c.key] = c.val
	}
	return func(context.Context) error {
		for i := len(changes) - 1; i >= 0; i-- {
			c := changes[i]
			if c.had {
				m.p[c.key] = c.old
			} else {
				delete(m.p, c.key)
			}
		}
		return nil
	}, nil
}

// Parameters returns the current scenario parameters. An unlimited emission
// cap is reported as nil.
func (m *Model) Parameters() []output.Table {
	keys := make([]paramKey, 0, len(m.p))
	for k := range m.p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].p != keys[j].p {
			return keys[i].p < keys[j].p
		}
		return keys[i].target < keys[j].target
	})
	t := output.Table{Name: "par_scenario", Columns: []string{"parameter", "target", "value"}}
	for _, k := range keys {
		var v any = m.p[k]
		if math.IsInf(m.p[k], 0) {
			v = nil
		}
		t.Rows = append(t.Rows, []any{string(k.p), k.target, v})
	}
	return []output.Table{t}
}

// Solve assembles the program for the current parameters and solves it.
func (m *Model) Solve(ctx context.Context) (sweep.Solution, error) {
	if !m.built {
		return sweep.Solution{Status: sweep.Failed}, errors.New("model not built")
	}
	if err := ctx.Err(); err != nil {
		return sweep.Solution{Status: sweep.Failed}, err
	}
	prog, err := m.assemble()
	if errors.Is(err, errTrivialInfeasible) {
		return sweep.Solution{Status: sweep.Infeasible}, nil
	}
	if err != nil {
		return sweep.Solution{Status: sweep.Failed}, err
	}
	obj, x, status, err := prog.solve(m.cfg.Tolerance)
	if err != nil || status != sweep.Optimal {
		return sweep.Solution{Status: status}, err
	}
	return sweep.Solution{Status: sweep.Optimal, Objective: obj, Tables: m.results(prog, x)}, nil
}
