// Package timemap converts a node's native-resolution calendar into slots at
// the node's target resolution. Native samples are filtered against the
// reference-year calendar, then every k consecutive survivors form a slot.
package timemap

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrResolutionMismatch reports a target resolution that is not an integer
// multiple of the native one, or a native resolution that does not divide
// the reference year.
var ErrResolutionMismatch = errors.New("resolution mismatch")

// Profile describes the sampling of one node. Resolutions are in hours.
type Profile struct {
	Node   string  `json:"node" yaml:"node"`
	Native float64 `json:"native" yaml:"native"`
	Target float64 `json:"target" yaml:"target"`
}

// Hours converts a resolution in hours to a duration rounded to the
// nanosecond.
func Hours(h float64) time.Duration {
	return time.Duration(math.Round(h * float64(time.Hour)))
}

// Slot is one interval at a node's target resolution. Start is the offset of
// the slot's first native sample. A calendar filter can leave a gap between
// the samples of one slot, in which case [Start, End) is not what the slot
// covers; Map.Spans gives the covered stretches.
type Slot struct {
	Node     string
	Index    int
	Start    time.Duration
	Duration time.Duration
	// Month of the slot's first native sample.
	Month int
	// First is the full-year index of the slot's first native sample.
	First int
}

// End returns Start + Duration.
func (s Slot) End() time.Duration { return s.Start + s.Duration }

// Weight returns the slot length in hours.
func (s Slot) Weight() float64 { return s.Duration.Hours() }

// Map is the slot table of one node. It is read-only once built.
type Map struct {
	profile Profile
	native  time.Duration
	target  time.Duration
	ratio   int
	samples []int
	slots   []Slot
}

// NewMap validates the profile, applies filter and groups the surviving
// native samples into slots.
func NewMap(p Profile, filter Filter) (*Map, error) {
	if p.Native <= 0 || p.Target <= 0 {
		return nil, fmt.Errorf("%w: node %s native=%gh target=%gh", ErrResolutionMismatch, p.Node, p.Native, p.Target)
	}
	native, target := Hours(p.Native), Hours(p.Target)
	if native <= 0 || Year%native != 0 {
		return nil, fmt.Errorf("%w: node %s native %gh does not divide the year", ErrResolutionMismatch, p.Node, p.Native)
	}
	if target%native != 0 {
		return nil, fmt.Errorf("%w: node %s target %gh is not a multiple of native %gh", ErrResolutionMismatch, p.Node, p.Target, p.Native)
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	m := &Map{profile: p, native: native, target: target, ratio: int(target / native)}
	cf := filter.compile()
	n := int(Year / native)
	for i := 0; i < n; i++ {
		if cf.match(Epoch.Add(time.Duration(i) * native)) {
			m.samples = append(m.samples, i)
		}
	}

	count := len(m.samples) / m.ratio
	m.slots = make([]Slot, count)
	for s := 0; s < count; s++ {
		first := m.samples[s*m.ratio]
		start := time.Duration(first) * native
		m.slots[s] = Slot{
			Node:     p.Node,
			Index:    s,
			Start:    start,
			Duration: target,
			Month:    int(Epoch.Add(start).Month()),
			First:    first,
		}
	}
	return m, nil
}

// Node returns the node identifier.
func (m *Map) Node() string { return m.profile.Node }

// Profile returns the resolutions the map was built from.
func (m *Map) Profile() Profile { return m.profile }

// Ratio returns k, the number of native samples per slot.
func (m *Map) Ratio() int { return m.ratio }

// Native returns the native sample length.
func (m *Map) Native() time.Duration { return m.native }

// Resolution returns the slot length.
func (m *Map) Resolution() time.Duration { return m.target }

// NativeCount returns the number of native samples in the full year.
func (m *Map) NativeCount() int { return int(Year / m.native) }

// Samples returns the full-year indices of the native samples that survived
// the calendar filter.
func (m *Map) Samples() []int { return append([]int(nil), m.samples...) }

// Len returns the number of slots.
func (m *Map) Len() int { return len(m.slots) }

// Slots returns a copy of the slot table.
func (m *Map) Slots() []Slot { return append([]Slot(nil), m.slots...) }

// Slot returns slot i.
func (m *Map) Slot(i int) Slot { return m.slots[i] }

// Span is a contiguous stretch [Start, End) of the reference year.
type Span struct {
	Start time.Duration
	End   time.Duration
}

// Spans returns the contiguous stretches covered by the native samples of
// slot i, in time order. Their lengths add up to the slot duration.
func (m *Map) Spans(i int) []Span {
	var out []Span
	for _, idx := range m.samples[i*m.ratio : (i+1)*m.ratio] {
		start := time.Duration(idx) * m.native
		if n := len(out); n > 0 && out[n-1].End == start {
			out[n-1].End += m.native
			continue
		}
		out = append(out, Span{Start: start, End: start + m.native})
	}
	return out
}

// Months returns the month of every slot, indexed by slot.
func (m *Map) Months() []int {
	out := make([]int, len(m.slots))
	for i, s := range m.slots {
		out[i] = s.Month
	}
	return out
}

// YearScale is the factor turning totals over the represented slots into
// full-year totals. It is zero when no slot survived.
func (m *Map) YearScale() float64 {
	if len(m.slots) == 0 {
		return 0
	}
	return Year.Hours() / (float64(len(m.slots)) * m.target.Hours())
}

// Aggregate combines a full-year native series into one value per slot.
func (m *Map) Aggregate(values []float64, rule Rule) ([]float64, error) {
	if len(values) != m.NativeCount() {
		return nil, fmt.Errorf("node %s: series has %d samples, want %d", m.profile.Node, len(values), m.NativeCount())
	}
	out := make([]float64, len(m.slots))
	group := make([]float64, m.ratio)
	for s := range m.slots {
		for j := 0; j < m.ratio; j++ {
			group[j] = values[m.samples[s*m.ratio+j]]
		}
		v, err := rule.combine(group)
		if err != nil {
			return nil, err
		}
		out[s] = v
	}
	return out, nil
}
