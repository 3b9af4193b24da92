package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gridsweep/config"
	"github.com/kilianp07/gridsweep/core/output"
	"github.com/kilianp07/gridsweep/core/sweep"
)

const systemYAML = `carriers: [el]
plant_types: [base, peak]
nodes: [N]
plants:
  - {name: cheap, node: N, carrier: el, type: base, capacity: 4, fuel_cost: 5}
  - {name: peaker, node: N, carrier: el, type: peak, capacity: 10, fuel_cost: 20}
series:
  - {kind: demand, node: N, carrier: el, constant: 6}
`

const configYAML = `log_level: warn
model:
  input: system.yaml
  calendar:
    - field: doy
      values: [1]
io:
  output:
    kind: file
    path: out
sweep:
  axes:
    - name: demand
      steps: 3
    - name: fuel
      steps: 2
      generator: index
  bindings:
    - axis: demand
      parameter: demand_scale
      min: 1
      max: 1.5
    - axis: fuel
      parameter: fuel_price_scale
      target: peak
      values: [1, 2]
      labels: [low, high]
`

func setup(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system.yaml"), []byte(systemYAML), 0o644))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML+extra), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestService_RunAndResume(t *testing.T) {
	cfg := setup(t, "")
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	require.Equal(t, 6, svc.Matrix().Len())
	require.Len(t, svc.Maps(), 1)
	assert.Equal(t, 24, svc.Maps()["N"].Len())

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Completed())
	assert.Empty(t, rep.Failed())
	// 4 MW at 5 and 2 MW at 20 over 24 hours
	assert.InDelta(t, 1440, rep.Results[0].Objective, 1e-6)

	sink, err := output.Open(context.Background(), cfg.IO.Output)
	require.NoError(t, err)
	runs, err := sink.Runs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, runs)
	rows, err := sink.(output.Reader).ReadTable(context.Background(), output.RunTable)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "low", rows[0].Values["fuel_lb"])
	assert.Equal(t, "high", rows[5].Values["fuel_lb"])
	require.NoError(t, sink.Close())

	// a fresh start refuses to clobber the stored run table
	_, err = svc.Run(context.Background())
	assert.True(t, errors.Is(err, sweep.ErrOutputExists))

	cfg.IO.ResumeAuto = true
	rep, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Skipped)
	assert.Empty(t, rep.Results)
}

func TestService_SuppressOutput(t *testing.T) {
	cfg := setup(t, "")
	cfg.IO.SuppressOutput = true
	svc, err := New(cfg)
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Completed())
	_, statErr := os.Stat(cfg.IO.Output.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestService_Cancelled(t *testing.T) {
	svc, err := New(setup(t, ""))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildMatrix_FilterAndLabels(t *testing.T) {
	cfg := setup(t, "  filter:\n    clauses:\n      - axis: fuel\n        in: [1]\n")
	m, err := BuildMatrix(cfg.Sweep)
	require.NoError(t, err)
	require.Equal(t, 3, m.Len())
	for i, r := range m.Runs() {
		assert.Equal(t, i, r.ID)
		lbl, ok := r.Label("fuel")
		assert.True(t, ok)
		assert.Equal(t, "high", lbl)
		_, ok = r.Label("demand")
		assert.False(t, ok)
	}
}

func TestNew_MissingInput(t *testing.T) {
	cfg := setup(t, "")
	cfg.Model.Input = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	assert.Error(t, err)
}
