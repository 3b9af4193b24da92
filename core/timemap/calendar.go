package timemap

import (
	"errors"
	"fmt"
	"time"
)

// ReferenceYear is the non-leap calendar year every node profile is laid
// out on.
const ReferenceYear = 2015

// Year is the length of the reference year.
const Year = 8760 * time.Hour

// Epoch is the first instant of the reference year. Slot offsets are
// measured from here.
var Epoch = time.Date(ReferenceYear, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrInvalidFilter reports a calendar filter that cannot be applied.
var ErrInvalidFilter = errors.New("invalid calendar filter")

// Field names a calendar attribute of a native sample.
type Field string

const (
	FieldMonth Field = "month" // 1..12
	FieldDay   Field = "day"   // day of month, 1..31
	FieldHour  Field = "hour"  // 0..23
	FieldDOY   Field = "doy"   // day of year, 1..365
	FieldDOW   Field = "dow"   // 0=Sunday..6
	FieldWeek  Field = "week"  // ISO week, 1..53
)

var fieldRange = map[Field][2]int{
	FieldMonth: {1, 12},
	FieldDay:   {1, 31},
	FieldHour:  {0, 23},
	FieldDOY:   {1, 365},
	FieldDOW:   {0, 6},
	FieldWeek:  {1, 53},
}

func (f Field) of(t time.Time) int {
	switch f {
	case FieldMonth:
		return int(t.Month())
	case FieldDay:
		return t.Day()
	case FieldHour:
		return t.Hour()
	case FieldDOY:
		return t.YearDay()
	case FieldDOW:
		return int(t.Weekday())
	case FieldWeek:
		_, w := t.ISOWeek()
		return w
	}
	return -1
}

// Predicate keeps samples whose Field value is one of Values.
type Predicate struct {
	Field  Field `json:"field" yaml:"field"`
	Values []int `json:"values" yaml:"values"`
}

// Filter is an ordered list of predicates; a sample survives when it
// satisfies all of them. The zero Filter keeps the whole year.
type Filter []Predicate

// Validate checks field names and value ranges.
func (f Filter) Validate() error {
	for _, p := range f {
		rng, ok := fieldRange[p.Field]
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, p.Field)
		}
		if len(p.Values) == 0 {
			return fmt.Errorf("%w: field %s has no values", ErrInvalidFilter, p.Field)
		}
		for _, v := range p.Values {
			if v < rng[0] || v > rng[1] {
				return fmt.Errorf("%w: %s=%d outside [%d,%d]", ErrInvalidFilter, p.Field, v, rng[0], rng[1])
			}
		}
	}
	return nil
}

type compiledFilter []struct {
	field Field
	set   map[int]bool
}

func (f Filter) compile() compiledFilter {
	out := make(compiledFilter, len(f))
	for i, p := range f {
		set := make(map[int]bool, len(p.Values))
		for _, v := range p.Values {
			set[v] = true
		}
		out[i].field = p.Field
		out[i].set = set
	}
	return out
}

func (c compiledFilter) match(t time.Time) bool {
	for _, p := range c {
		if !p.set[p.field.of(t)] {
			return false
		}
	}
	return true
}
