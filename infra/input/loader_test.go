package input

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gridsweep/core/energy"
)

const systemYAML = `
carriers: [el]
plant_types: [thermal, wind]
nodes: [A, B]
plants:
  - {name: gA, node: A, carrier: el, type: thermal, capacity: 100, fuel_cost: 1}
  - {name: wB, node: B, carrier: el, type: wind, capacity: 50}
interconnects:
  - {from: A, to: B, carrier: el, cap_export: 10, cap_import: 5, monthly: {7: 2}}
series:
  - {kind: demand, node: A, carrier: el, constant: 2}
  - {kind: demand, node: B, carrier: el, file: load_b.csv, column: load, scale: 2}
  - {kind: availability, plant: wB, aggregation: min, file: wind.csv}
grid_losses:
  - {node: A, carrier: el, factor: 0.08}
`

func writeProfile(t *testing.T, path, header string, n int, f func(i int) float64) {
	t.Helper()
	var sb strings.Builder
	if header != "" {
		sb.WriteString(header + "\n")
	}
	for i := 0; i < n; i++ {
		sb.WriteString("x," + strconv.FormatFloat(f(i), 'f', -1, 64) + "\n")
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.yaml")
	require.NoError(t, os.WriteFile(path, []byte(systemYAML), 0o644))
	writeProfile(t, filepath.Join(dir, "load_b.csv"), "ts,load", 4380, func(i int) float64 { return 1.5 })

	// wind.csv has no header and reads its first column
	var sb strings.Builder
	for i := 0; i < 4380; i++ {
		sb.WriteString(strconv.FormatFloat(float64(i%2)/2, 'f', -1, 64) + "\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wind.csv"), []byte(sb.String()), 0o644))

	sys, err := Load(path, map[string]int{"A": 8760, "B": 4380})
	require.NoError(t, err)

	require.Len(t, sys.Plants, 2)
	assert.Equal(t, 1.0, sys.Plants[0].FuelCost)
	require.Len(t, sys.Interconnects, 1)
	exp, imp := sys.Interconnects[0].Capacity(7)
	assert.Equal(t, []float64{2, 2}, []float64{exp, imp})

	require.Len(t, sys.Series, 3)
	assert.Len(t, sys.Series[0].Values, 8760)
	assert.Equal(t, 2.0, sys.Series[0].Values[100])
	assert.Equal(t, 3.0, sys.Series[1].Values[0])
	assert.Equal(t, energy.KindAvailability, sys.Series[2].Kind)
	assert.Equal(t, "min", sys.Series[2].Aggregation)
	assert.Equal(t, 0.5, sys.Series[2].Values[1])
	assert.Equal(t, []energy.GridLoss{{Node: "A", Carrier: "el", Factor: 0.08}}, sys.GridLosses)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(body string) string {
		p := filepath.Join(dir, "s.yaml")
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	base := "carriers: [el]\nplant_types: [t]\nnodes: [A]\n"

	_, err := Load(write(base+"series:\n  - {kind: demand, node: A, carrier: el, values: [1, 2]}\n"), map[string]int{"A": 8760})
	assert.ErrorContains(t, err, "2 samples")

	_, err = Load(write(base+"series:\n  - {kind: demand, node: A, carrier: el, constant: 1, values: [1]}\n"), map[string]int{"A": 8760})
	assert.ErrorContains(t, err, "exactly one")

	_, err = Load(write(base+"series:\n  - {kind: demand, node: Z, carrier: el, constant: 1}\n"), map[string]int{"A": 8760})
	assert.ErrorContains(t, err, "no resolution")

	_, err = Load(write(base+"plants:\n  - {name: p, node: A, carrier: gas, type: t}\n"), map[string]int{"A": 8760})
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	v, err := ReadCSV(strings.NewReader("1\n2.5\n-3\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, v)

	v, err = ReadCSV(strings.NewReader("a,b\n1,10\n2,20\n"), "B")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, v)

	_, err = ReadCSV(strings.NewReader("a,b\n1,10\n"), "c")
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader("1\n2\n"), "c")
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader("a\n1\nnope\n"), "")
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader(""), "")
	assert.Error(t, err)
}

func TestReadDef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.yaml")
	require.NoError(t, os.WriteFile(path, []byte(systemYAML), 0o644))
	def, err := ReadDef(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, def.Nodes)
	require.Len(t, def.Series, 3)
	assert.Equal(t, "load_b.csv", def.Series[1].File)

	_, err = ReadDef(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
