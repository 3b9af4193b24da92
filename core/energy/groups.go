package energy

import (
	"errors"
	"fmt"
)

// ErrUnknownGroup reports a constraint group name outside the registry.
var ErrUnknownGroup = errors.New("unknown constraint group")

// Group names a family of LP rows.
type Group string

const (
	// GroupSupply balances generation, exchange and demand per node, carrier
	// and slot. It is always active.
	GroupSupply Group = "supply"
	// GroupCapacity bounds plant output by installed capacity.
	GroupCapacity Group = "capacity"
	// GroupTransmission bounds interconnect flows.
	GroupTransmission Group = "transmission_bounds"
	// GroupEmission caps total yearly emissions.
	GroupEmission Group = "emission_cap"
)

type groupBuilder func(m *Model, lp *program) error

var groupRegistry = map[Group]groupBuilder{
	GroupSupply:       (*Model).supplyRows,
	GroupCapacity:     (*Model).capacityRows,
	GroupTransmission: (*Model).transmissionRows,
	GroupEmission:     (*Model).emissionRows,
}

// groupOrder fixes the row order of the assembled program.
var groupOrder = []Group{GroupSupply, GroupCapacity, GroupTransmission, GroupEmission}

// ParseGroups validates group names. Supply is added when missing; an empty
// list selects every group.
func ParseGroups(names []string) ([]Group, error) {
	if len(names) == 0 {
		return append([]Group(nil), groupOrder...), nil
	}
	want := map[Group]bool{GroupSupply: true}
	for _, n := range names {
		g := Group(n)
		if _, ok := groupRegistry[g]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, n)
		}
		want[g] = true
	}
	out := make([]Group, 0, len(want))
	for _, g := range groupOrder {
		if want[g] {
			out = append(out, g)
		}
	}
	return out, nil
}
