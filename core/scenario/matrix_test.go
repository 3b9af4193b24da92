package scenario

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweepAxes() []Axis {
	return []Axis{
		{Name: "swco", Steps: 3, Generator: UnitInterval},
		{Name: "swfy", Steps: 3, Generator: Index},
	}
}

func TestNewMatrix_RowCountAndDenseIDs(t *testing.T) {
	cases := [][]Axis{
		{{Name: "a", Steps: 1, Generator: Index}},
		{{Name: "a", Steps: 4, Generator: Index}, {Name: "b", Steps: 2, Generator: UnitInterval}},
		{{Name: "a", Steps: 2, Generator: Index}, {Name: "b", Steps: 3, Generator: Index}, {Name: "c", Steps: 5, Generator: UnitInterval}},
	}
	for _, axes := range cases {
		m, err := NewMatrix(axes...)
		require.NoError(t, err)
		want := 1
		for _, a := range axes {
			want *= a.Steps
		}
		require.Equal(t, want, m.Len())
		for i, r := range m.Runs() {
			assert.Equal(t, i, r.ID)
		}
	}
}

func TestGenerators(t *testing.T) {
	m, err := NewMatrix(Axis{Name: "u", Steps: 3, Generator: UnitInterval})
	require.NoError(t, err)
	var vals []float64
	for _, r := range m.Runs() {
		v, ok := r.Value("u")
		require.True(t, ok)
		vals = append(vals, v)
	}
	assert.Equal(t, []float64{0, 0.5, 1}, vals)

	m, err = NewMatrix(Axis{Name: "i", Steps: 3, Generator: Index})
	require.NoError(t, err)
	vals = vals[:0]
	for _, r := range m.Runs() {
		v, _ := r.Value("i")
		vals = append(vals, v)
	}
	assert.Equal(t, []float64{0, 1, 2}, vals)

	single := Axis{Name: "s", Steps: 1, Generator: UnitInterval}
	assert.Equal(t, 0.0, single.Value(0))
}

func TestNewMatrix_InvalidAxes(t *testing.T) {
	_, err := NewMatrix(Axis{Name: "a", Steps: 0})
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = NewMatrix(Axis{Name: "a", Steps: -2})
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = NewMatrix(Axis{Name: "", Steps: 2})
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = NewMatrix(Axis{Name: "a", Steps: 2}, Axis{Name: "a", Steps: 2})
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = NewMatrix()
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = ParseGenerator("log")
	assert.True(t, errors.Is(err, ErrInvalidAxis))
}

func TestParseGenerator(t *testing.T) {
	g, err := ParseGenerator("unit-interval")
	require.NoError(t, err)
	assert.Equal(t, UnitInterval, g)
	g, err = ParseGenerator("Index")
	require.NoError(t, err)
	assert.Equal(t, Index, g)
	assert.Equal(t, "index", g.String())
}

type row struct {
	id, coID, fyID int
	co, fy         float64
}

func rows(m *Matrix) []row {
	var out []row
	for _, r := range m.Runs() {
		co, _ := r.Value("swco")
		fy, _ := r.Value("swfy")
		out = append(out, row{r.ID, r.StepID("swco"), r.StepID("swfy"), co, fy})
	}
	return out
}

func TestEndToEndSweepMatrix(t *testing.T) {
	m, err := NewMatrix(sweepAxes()...)
	require.NoError(t, err)
	require.Equal(t, 9, m.Len())

	all := rows(m)
	assert.Equal(t, row{0, 0, 0, 0, 0}, all[0])
	assert.Equal(t, row{2, 2, 0, 1, 0}, all[2])
	assert.Equal(t, row{8, 2, 2, 1, 2}, all[8])

	f := m.Filter(func(r Run) bool { return r.StepID("swco") != 2 || r.StepID("swfy") == 1 })
	want := []row{
		{0, 0, 0, 0, 0},
		{1, 1, 0, 0.5, 0},
		{2, 0, 1, 0, 1},
		{3, 1, 1, 0.5, 1},
		{4, 2, 1, 1, 1},
		{5, 0, 2, 0, 2},
		{6, 1, 2, 0.5, 2},
	}
	assert.Equal(t, want, rows(f))
	// source matrix untouched
	assert.Equal(t, 9, m.Len())
}

func TestFilter_PreservesOrderAndReindexes(t *testing.T) {
	m, err := NewMatrix(Axis{Name: "a", Steps: 10, Generator: Index})
	require.NoError(t, err)
	f := m.Filter(func(r Run) bool { return r.ID%3 == 0 })
	require.Equal(t, 4, f.Len())
	for i, r := range f.Runs() {
		assert.Equal(t, i, r.ID)
		assert.Equal(t, i*3, r.StepID("a"))
	}

	// chained filters keep ids dense
	g := f.Filter(func(r Run) bool { return r.ID != 0 })
	require.Equal(t, 3, g.Len())
	for i, r := range g.Runs() {
		assert.Equal(t, i, r.ID)
	}
	assert.Equal(t, 0, m.Filter(func(Run) bool { return false }).Len())
}

func TestLabel(t *testing.T) {
	m, err := NewMatrix(sweepAxes()...)
	require.NoError(t, err)

	r, _ := m.Run(0)
	_, ok := r.Label("swfy")
	assert.False(t, ok, "labels start unset")

	years := []int{2015, 2030, 2050}
	err = m.Label("swfy", func(id int) (string, bool) {
		if id == 2 {
			return "", false
		}
		return strconv.Itoa(years[id]), true
	})
	require.NoError(t, err)

	r, _ = m.Run(3)
	lbl, ok := r.Label("swfy")
	require.True(t, ok)
	assert.Equal(t, "2030", lbl)
	r, _ = m.Run(8)
	_, ok = r.Label("swfy")
	assert.False(t, ok)

	// labels survive filtering
	f := m.Filter(func(r Run) bool { return r.StepID("swfy") == 1 })
	r, _ = f.Run(0)
	lbl, _ = r.Label("swfy")
	assert.Equal(t, "2030", lbl)

	assert.Error(t, m.Label("nope", func(int) (string, bool) { return "", false }))
}

func TestRunAccessorsUnknownAxis(t *testing.T) {
	m, err := NewMatrix(sweepAxes()...)
	require.NoError(t, err)
	r, ok := m.Run(1)
	require.True(t, ok)
	assert.Equal(t, -1, r.StepID("x"))
	_, ok = r.Value("x")
	assert.False(t, ok)
	_, ok = m.Run(99)
	assert.False(t, ok)
	assert.Equal(t, map[string]float64{"swco": 0.5, "swfy": 0}, r.Values())
}

func TestSignature(t *testing.T) {
	a, err := NewMatrix(sweepAxes()...)
	require.NoError(t, err)
	b, err := NewMatrix(sweepAxes()...)
	require.NoError(t, err)
	assert.Equal(t, a.Signature(), b.Signature())

	c, err := NewMatrix(Axis{Name: "swco", Steps: 4, Generator: UnitInterval}, Axis{Name: "swfy", Steps: 3, Generator: Index})
	require.NoError(t, err)
	assert.NotEqual(t, a.Signature(), c.Signature())

	f := a.Filter(func(r Run) bool { return r.ID != 4 })
	assert.NotEqual(t, a.Signature(), f.Signature())

	// labels do not change the structure
	require.NoError(t, b.Label("swfy", func(int) (string, bool) { return "x", true }))
	assert.Equal(t, a.Signature(), b.Signature())
}
