package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreoutput "github.com/kilianp07/gridsweep/core/output"
)

func descriptor(t *testing.T, kind string) coreoutput.Descriptor {
	dir := t.TempDir()
	d := coreoutput.Descriptor{Kind: kind, Path: dir, Collection: "sweep"}
	if kind == "database" {
		d.Path = filepath.Join(dir, "results.db")
	}
	return d
}

func runTables(id int) []coreoutput.Table {
	return []coreoutput.Table{
		{Name: "var_pwr", Columns: []string{"plant", "slot", "power"}, Rows: [][]any{{"gA", 0, float64(id)}, {"gA", 1, float64(id) + 0.5}}},
		{Name: coreoutput.RunTable, Columns: []string{"run_id", "status"}, Rows: [][]any{{id, "optimal"}}},
	}
}

func TestSinks_Contract(t *testing.T) {
	for _, kind := range []string{"file", "database"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			d := descriptor(t, kind)
			s, err := coreoutput.Open(ctx, d)
			require.NoError(t, err)

			_, err = s.ReadMeta(ctx)
			assert.True(t, errors.Is(err, coreoutput.ErrNoMeta))

			meta := coreoutput.Meta{Signature: "sig", Runs: 8, Axes: []string{"a", "b"}, Session: "s1", Created: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
			require.NoError(t, s.WriteMeta(ctx, meta))
			got, err := s.ReadMeta(ctx)
			require.NoError(t, err)
			assert.Equal(t, meta, got)

			for id := 0; id < 8; id++ {
				require.NoError(t, s.WriteRun(ctx, id, runTables(id)))
			}
			runs, err := s.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, runs)

			require.NoError(t, s.DeleteRuns(ctx, coreoutput.OnlyRun(5)))
			require.NoError(t, s.DeleteRuns(ctx, coreoutput.RunRange{From: 6, To: -1}))
			runs, err = s.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2, 3, 4}, runs)

			require.NoError(t, s.Close())

			// reopening keeps everything that was not deleted
			s, err = coreoutput.Open(ctx, d)
			require.NoError(t, err)
			defer func() { _ = s.Close() }()
			require.NoError(t, s.WriteRun(ctx, 5, runTables(50)))
			runs, err = s.Runs(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, runs)

			r, ok := s.(coreoutput.Reader)
			require.True(t, ok)
			recs, err := r.ReadTable(ctx, "var_pwr")
			require.NoError(t, err)
			require.Len(t, recs, 12)
			last := recs[11]
			assert.Equal(t, 5, last.RunID)
			assert.Equal(t, 50.5, last.Values["power"])
			assert.Equal(t, "gA", last.Values["plant"])

			rows, err := r.ReadTable(ctx, coreoutput.RunTable)
			require.NoError(t, err)
			assert.Equal(t, "optimal", rows[0].Values["status"])
		})
	}
}

func TestSinks_Isolation(t *testing.T) {
	for _, kind := range []string{"file", "database"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			d := descriptor(t, kind)
			a, err := coreoutput.Open(ctx, d)
			require.NoError(t, err)
			defer func() { _ = a.Close() }()
			d.Collection = "other"
			b, err := coreoutput.Open(ctx, d)
			require.NoError(t, err)
			defer func() { _ = b.Close() }()

			require.NoError(t, a.WriteRun(ctx, 0, runTables(0)))
			runs, err := b.Runs(ctx)
			require.NoError(t, err)
			assert.Empty(t, runs)
			_, err = b.ReadMeta(ctx)
			assert.True(t, errors.Is(err, coreoutput.ErrNoMeta))
		})
	}
}

func TestSinks_RejectInvalidTable(t *testing.T) {
	for _, kind := range []string{"file", "database"} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			s, err := coreoutput.Open(ctx, descriptor(t, kind))
			require.NoError(t, err)
			defer func() { _ = s.Close() }()
			bad := coreoutput.Table{Name: "x", Columns: []string{"a", "b"}, Rows: [][]any{{1}}}
			assert.Error(t, s.WriteRun(ctx, 0, []coreoutput.Table{bad}))
			runs, err := s.Runs(ctx)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestJSONLSink_Layout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewJSONLSink()
	require.NoError(t, s.Init(ctx, coreoutput.Descriptor{Path: dir}))
	require.NoError(t, s.WriteRun(ctx, 3, runTables(3)))

	b, err := os.ReadFile(filepath.Join(dir, defaultBucket, coreoutput.RunTable+jsonlExt))
	require.NoError(t, err)
	assert.JSONEq(t, `{"run_id":3,"values":{"run_id":3,"status":"optimal"}}`, string(b))

	_, err = NewJSONLSink().Runs(ctx)
	assert.True(t, errors.Is(err, coreoutput.ErrNotInitialized))
	assert.Error(t, NewJSONLSink().Init(ctx, coreoutput.Descriptor{}))
}

func TestSQLiteSink_NotInitialized(t *testing.T) {
	s := NewSQLiteSink()
	_, err := s.Runs(context.Background())
	assert.True(t, errors.Is(err, coreoutput.ErrNotInitialized))
	assert.NoError(t, s.Close())
}
