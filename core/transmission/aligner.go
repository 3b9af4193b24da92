// Package transmission builds slot correspondence tables between node pairs
// so that energy exchanged between nodes with different slot lengths can be
// balanced on both sides without loss.
package transmission

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/gridsweep/core/timemap"
)

// ErrMisaligned reports slot boundaries that do not line up between the
// two nodes of a link.
var ErrMisaligned = errors.New("misaligned transmission slots")

// Overlap is the part of a fine slot covered by a coarse slot.
type Overlap struct {
	Slot     int
	Duration time.Duration
}

// Correspondence lists the fine slots overlapping one coarse slot, ordered
// by start time.
type Correspondence struct {
	Coarse   int
	Duration time.Duration
	Fine     []Overlap
}

// Link is the correspondence table of an ordered node pair.
type Link struct {
	From, To string
	// Coarse and Fine name the nodes with the longer and shorter slot
	// lengths. For equal resolutions Coarse is From.
	Coarse, Fine string
	Entries      []Correspondence
}

// Identity reports whether both nodes share their slot table.
func (l Link) Identity() bool {
	for _, e := range l.Entries {
		if len(e.Fine) != 1 || e.Fine[0].Duration != e.Duration {
			return false
		}
	}
	return true
}

// Weights returns the overlap of each fine slot as a fraction of the coarse
// slot. The fractions sum to one.
func (l Link) Weights(coarse int) []float64 {
	e := l.Entries[coarse]
	out := make([]float64, len(e.Fine))
	for i, o := range e.Fine {
		out[i] = float64(o.Duration) / float64(e.Duration)
	}
	return out
}

// FineToCoarse maps every fine slot index to its coarse slot index.
func (l Link) FineToCoarse() map[int]int {
	out := make(map[int]int)
	for _, e := range l.Entries {
		for _, o := range e.Fine {
			out[o.Slot] = e.Coarse
		}
	}
	return out
}

// Align builds the correspondence table for the link from → to. Slots are
// compared through the native samples they hold, so slots bridging a
// calendar gap align as long as every fine slot falls inside one coarse
// slot and the coarse slots are fully covered.
func Align(from, to *timemap.Map) (Link, error) {
	link := Link{From: from.Node(), To: to.Node()}
	coarse, fine := from, to
	if to.Resolution() > from.Resolution() {
		coarse, fine = to, from
	}
	link.Coarse, link.Fine = coarse.Node(), fine.Node()
	if coarse.Resolution()%fine.Resolution() != 0 {
		return Link{}, fmt.Errorf("%w: %s/%s slot lengths %s and %s are not multiples",
			ErrMisaligned, link.From, link.To, coarse.Resolution(), fine.Resolution())
	}

	cs, fs := stretches(coarse), stretches(fine)
	owner := make(map[int]int, fine.Len())
	fineCovered := make([]time.Duration, fine.Len())
	coarseCovered := make([]time.Duration, coarse.Len())
	j := 0
	for _, f := range fs {
		// skip coarse stretches ending before this fine stretch
		for j < len(cs) && cs[j].End <= f.Start {
			j++
		}
		if j == len(cs) || cs[j].Start >= f.End {
			continue
		}
		c := cs[j]
		if f.Start < c.Start || f.End > c.End {
			return Link{}, fmt.Errorf("%w: %s slot %d [%s,%s) crosses %s slot %d [%s,%s)",
				ErrMisaligned, fine.Node(), f.slot, f.Start, f.End, coarse.Node(), c.slot, c.Start, c.End)
		}
		if prev, ok := owner[f.slot]; ok && prev != c.slot {
			return Link{}, fmt.Errorf("%w: %s slot %d is split between %s slots %d and %d",
				ErrMisaligned, fine.Node(), f.slot, coarse.Node(), prev, c.slot)
		}
		owner[f.slot] = c.slot
		fineCovered[f.slot] += f.End - f.Start
		coarseCovered[c.slot] += f.End - f.Start
	}

	link.Entries = make([]Correspondence, coarse.Len())
	for i := range link.Entries {
		link.Entries[i] = Correspondence{Coarse: i, Duration: coarse.Resolution()}
	}
	for f := 0; f < fine.Len(); f++ {
		c, ok := owner[f]
		if !ok {
			continue
		}
		if fineCovered[f] != fine.Resolution() {
			return Link{}, fmt.Errorf("%w: %s slot %d lies partly outside the slots of %s",
				ErrMisaligned, fine.Node(), f, coarse.Node())
		}
		link.Entries[c].Fine = append(link.Entries[c].Fine, Overlap{Slot: f, Duration: fine.Resolution()})
	}
	for i, e := range link.Entries {
		if coarseCovered[i] != e.Duration {
			return Link{}, fmt.Errorf("%w: %s slot %d covered for %s of %s by %s",
				ErrMisaligned, coarse.Node(), i, coarseCovered[i], e.Duration, fine.Node())
		}
	}
	return link, nil
}

// stretch is one contiguous span of a slot.
type stretch struct {
	timemap.Span
	slot int
}

// stretches lists the spans of every slot of m in time order.
func stretches(m *timemap.Map) []stretch {
	var out []stretch
	for i := 0; i < m.Len(); i++ {
		for _, sp := range m.Spans(i) {
			out = append(out, stretch{Span: sp, slot: i})
		}
	}
	return out
}

// Pair is an ordered node pair to align.
type Pair struct {
	From, To string
}

// AlignAll builds one link per pair using the node slot tables in maps.
func AlignAll(maps map[string]*timemap.Map, pairs []Pair) ([]Link, error) {
	links := make([]Link, 0, len(pairs))
	for _, p := range pairs {
		from, ok := maps[p.From]
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %s", ErrMisaligned, p.From)
		}
		to, ok := maps[p.To]
		if !ok {
			return nil, fmt.Errorf("%w: unknown node %s", ErrMisaligned, p.To)
		}
		l, err := Align(from, to)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}
