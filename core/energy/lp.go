package energy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/gridsweep/core/output"
	"github.com/kilianp07/gridsweep/core/sweep"
)

// errTrivialInfeasible marks a balance row with demand but no variable.
var errTrivialInfeasible = errors.New("demand without supply")

type colKind int

const (
	colPower colKind = iota
	colExport
	colImport
)

type column struct {
	kind  colKind
	ref   int // plant or link index
	slot  int
	hours float64
}

type row struct {
	name string
	coef map[int]float64
	rhs  float64
	// ineq rows read coef·x <= rhs and get a slack column.
	ineq bool
}

// program is a minimization over non-negative variables.
type program struct {
	cols  []column
	c     []float64
	rows  []row
	power [][]int    // plant → slot → column
	flow  [][][2]int // link → fine position → export, import columns
}

func (p *program) add(col column, cost float64) int {
	p.cols = append(p.cols, col)
	p.c = append(p.c, cost)
	return len(p.cols) - 1
}

func (m *Model) assemble() (*program, error) {
	prog := &program{}
	co2 := m.p.get(CO2Price)
	for i, pl := range m.sys.Plants {
		slots := m.maps[pl.Node].Slots()
		cost := pl.FuelCost*m.p.scale(FuelPriceScale, pl.Type) + pl.CO2Intensity*co2
		idx := make([]int, len(slots))
		for s, sl := range slots {
			idx[s] = prog.add(column{kind: colPower, ref: i, slot: s, hours: sl.Weight()}, cost*sl.Weight())
		}
		prog.power = append(prog.power, idx)
	}
	for i, a := range m.links {
		fineMap := m.maps[a.link.Fine]
		idx := make([][2]int, len(a.fine))
		for j, f := range a.fine {
			h := fineMap.Slot(f).Weight()
			cost := m.cfg.TransmissionCost * h
			idx[j][0] = prog.add(column{kind: colExport, ref: i, slot: f, hours: h}, cost)
			idx[j][1] = prog.add(column{kind: colImport, ref: i, slot: f, hours: h}, cost)
		}
		prog.flow = append(prog.flow, idx)
	}
	for _, g := range m.groups {
		if err := groupRegistry[g](m, prog); err != nil {
			return nil, fmt.Errorf("%s rows: %w", g, err)
		}
	}
	return prog, nil
}

// supplyRows: generation + net import = demand × (1 + grid loss), per node,
// carrier and slot, in MW. Flows live on the fine side of a link; a coarse slot sees the
// overlap-weighted mean of the fine flows it contains.
func (m *Model) supplyRows(prog *program) error {
	for _, node := range m.sys.Nodes {
		tm := m.maps[node]
		for _, carrier := range m.sys.Carriers {
			demand := m.demand[nodeCarrier{node, carrier}]
			scale := m.p.scale(DemandScale, node) * (1 + m.losses[nodeCarrier{node, carrier}])
			for s := 0; s < tm.Len(); s++ {
				r := row{name: fmt.Sprintf("supply[%s,%s,%d]", node, carrier, s), coef: map[int]float64{}}
				for i, pl := range m.sys.Plants {
					if pl.Node == node && pl.Carrier == carrier {
						r.coef[prog.power[i][s]] += 1
					}
				}
				for i, a := range m.links {
					if a.ic.Carrier != carrier || (a.ic.From != node && a.ic.To != node) {
						continue
					}
					sign := 1.0
					if a.ic.From == node {
						sign = -1
					}
					switch node {
					case a.link.Coarse:
						w := a.link.Weights(s)
						for k, o := range a.link.Entries[s].Fine {
							pos := a.finePos[o.Slot]
							r.coef[prog.flow[i][pos][0]] += sign * w[k]
							r.coef[prog.flow[i][pos][1]] -= sign * w[k]
						}
					case a.link.Fine:
						if pos, ok := a.finePos[s]; ok {
							r.coef[prog.flow[i][pos][0]] += sign
							r.coef[prog.flow[i][pos][1]] -= sign
						}
					}
				}
				if demand != nil {
					r.rhs = demand[s] * scale
				}
				if len(r.coef) == 0 {
					if r.rhs != 0 {
						return fmt.Errorf("%w: %s", errTrivialInfeasible, r.name)
					}
					continue
				}
				prog.rows = append(prog.rows, r)
			}
		}
	}
	return nil
}

// capacityRows: output <= capacity × scale × availability.
func (m *Model) capacityRows(prog *program) error {
	for i, pl := range m.sys.Plants {
		capacity := pl.Capacity * m.p.scale(CapacityScale, pl.Type)
		av := m.avail[pl.Name]
		for s, col := range prog.power[i] {
			limit := capacity
			if av != nil {
				limit *= av[s]
			}
			prog.rows = append(prog.rows, row{
				name: fmt.Sprintf("capacity[%s,%d]", pl.Name, s),
				coef: map[int]float64{col: 1},
				rhs:  limit,
				ineq: true,
			})
		}
	}
	return nil
}

// transmissionRows: flows <= line capacity of the fine slot's month.
func (m *Model) transmissionRows(prog *program) error {
	scale := m.p.get(TransmissionScale)
	for i, a := range m.links {
		fineMap := m.maps[a.link.Fine]
		for j, f := range a.fine {
			exp, imp := a.ic.Capacity(fineMap.Slot(f).Month)
			name := fmt.Sprintf("transmission[%s>%s,%d]", a.ic.From, a.ic.To, f)
			prog.rows = append(prog.rows,
				row{name: name + "exp", coef: map[int]float64{prog.flow[i][j][0]: 1}, rhs: exp * scale, ineq: true},
				row{name: name + "imp", coef: map[int]float64{prog.flow[i][j][1]: 1}, rhs: imp * scale, ineq: true},
			)
		}
	}
	return nil
}

// emissionRows: yearly emissions <= cap. Represented slots are scaled to the
// full year per node.
func (m *Model) emissionRows(prog *program) error {
	limit := m.p.get(EmissionCap)
	if math.IsInf(limit, 1) {
		return nil
	}
	r := row{name: "emission_cap", coef: map[int]float64{}, rhs: limit, ineq: true}
	for i, pl := range m.sys.Plants {
		if pl.CO2Intensity == 0 {
			continue
		}
		ys := m.maps[pl.Node].YearScale()
		for _, col := range prog.power[i] {
			r.coef[col] = pl.CO2Intensity * prog.cols[col].hours * ys
		}
	}
	prog.rows = append(prog.rows, r)
	return nil
}

// solveStandard solves min cᵀx s.t. Ax = b, x >= 0. It can be overridden in
// tests to simulate solver failures.
var solveStandard = func(c []float64, A mat.Matrix, b []float64, tol float64) (float64, []float64, error) {
	return lp.Simplex(c, A, b, tol, nil)
}

// solve converts the program to standard form with one slack column per
// inequality row.
func (p *program) solve(tol float64) (float64, []float64, sweep.Status, error) {
	n := len(p.cols)
	slacks := 0
	for _, r := range p.rows {
		if r.ineq {
			slacks++
		}
	}
	rows, cols := len(p.rows), n+slacks
	if rows == 0 {
		return 0, make([]float64, n), sweep.Optimal, nil
	}
	if rows > cols {
		return 0, nil, sweep.Failed, fmt.Errorf("program has %d rows for %d columns", rows, cols)
	}

	A := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	c := make([]float64, cols)
	copy(c, p.c)
	slack := n
	for i, r := range p.rows {
		for j, v := range r.coef {
			A.Set(i, j, v)
		}
		if r.ineq {
			A.Set(i, slack, 1)
			slack++
		}
		b[i] = r.rhs
	}

	obj, x, err := solveStandard(c, A, b, tol)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return 0, nil, sweep.Infeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return 0, nil, sweep.Unbounded, nil
	case err != nil:
		return 0, nil, sweep.Failed, fmt.Errorf("simplex: %w", err)
	}
	return obj, x[:n], sweep.Optimal, nil
}

func (m *Model) results(p *program, x []float64) []output.Table {
	pwr := output.Table{Name: "var_pwr", Columns: []string{"plant", "node", "carrier", "slot", "power", "energy"}}
	trm := output.Table{Name: "var_trm", Columns: []string{"from", "to", "carrier", "slot", "export", "import"}}
	for i, pl := range m.sys.Plants {
		for s, col := range p.power[i] {
			v := clean(x[col])
			pwr.Rows = append(pwr.Rows, []any{pl.Name, pl.Node, pl.Carrier, s, v, v * p.cols[col].hours})
		}
	}
	for i, a := range m.links {
		for j, f := range a.fine {
			cols := p.flow[i][j]
			trm.Rows = append(trm.Rows, []any{a.ic.From, a.ic.To, a.ic.Carrier, f, clean(x[cols[0]]), clean(x[cols[1]])})
		}
	}
	return []output.Table{pwr, trm}
}

// clean drops simplex round-off around zero.
func clean(v float64) float64 {
	if math.Abs(v) < 1e-9 {
		return 0
	}
	return v
}
