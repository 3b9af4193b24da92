package output

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	coreoutput "github.com/kilianp07/gridsweep/core/output"
)

const (
	metaFile      = "meta.json"
	jsonlExt      = ".jsonl"
	defaultBucket = "runs"
)

// JSONLSink stores every table of a collection as one JSONL file inside the
// directory <path>/<collection>.
type JSONLSink struct {
	dir string
	mu  sync.Mutex
}

// NewJSONLSink returns an uninitialized file sink.
func NewJSONLSink() *JSONLSink { return &JSONLSink{} }

type line struct {
	RunID  int            `json:"run_id"`
	Values map[string]any `json:"values"`
}

func (s *JSONLSink) Init(_ context.Context, d coreoutput.Descriptor) error {
	if d.Path == "" {
		return errors.New("file sink: empty path")
	}
	coll := d.Collection
	if coll == "" {
		coll = defaultBucket
	}
	dir := filepath.Join(d.Path, coll)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
	return nil
}

func (s *JSONLSink) ReadMeta(context.Context) (coreoutput.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return coreoutput.Meta{}, coreoutput.ErrNotInitialized
	}
	b, err := os.ReadFile(filepath.Join(s.dir, metaFile))
	if errors.Is(err, os.ErrNotExist) {
		return coreoutput.Meta{}, coreoutput.ErrNoMeta
	}
	if err != nil {
		return coreoutput.Meta{}, err
	}
	var m coreoutput.Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return coreoutput.Meta{}, fmt.Errorf("decode %s: %w", metaFile, err)
	}
	return m, nil
}

func (s *JSONLSink) WriteMeta(_ context.Context, m coreoutput.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return coreoutput.ErrNotInitialized
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return replaceFile(filepath.Join(s.dir, metaFile), func(f *os.File) error {
		_, err := f.Write(b)
		return err
	})
}

// DeleteRuns rewrites every table file without the selected runs. The run
// table is rewritten first so that a partial deletion never leaves a run
// marked complete with missing rows.
func (s *JSONLSink) DeleteRuns(_ context.Context, r coreoutput.RunRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return coreoutput.ErrNotInitialized
	}
	tables, err := s.tables()
	if err != nil {
		return err
	}
	sort.SliceStable(tables, func(i, j int) bool { return tables[i] == coreoutput.RunTable })
	for _, t := range tables {
		if err := s.filter(t, func(l line) bool { return !r.Contains(l.RunID) }); err != nil {
			return fmt.Errorf("table %s: %w", t, err)
		}
	}
	return nil
}

// WriteRun appends the rows of each table, the run table last.
func (s *JSONLSink) WriteRun(_ context.Context, runID int, tables []coreoutput.Table) error {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if strings.ContainsAny(t.Name, `/\`) {
			return fmt.Errorf("invalid table name %q", t.Name)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return coreoutput.ErrNotInitialized
	}
	var runRows []coreoutput.Table
	for _, t := range tables {
		if t.Name == coreoutput.RunTable {
			runRows = append(runRows, t)
			continue
		}
		if err := s.append(t, runID); err != nil {
			return err
		}
	}
	for _, t := range runRows {
		if err := s.append(t, runID); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONLSink) append(t coreoutput.Table, runID int) error {
	f, err := os.OpenFile(s.path(t.Name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range t.Records() {
		if err := enc.Encode(line{RunID: runID, Values: rec}); err != nil {
			_ = f.Close()
			return fmt.Errorf("table %s run %d: %w", t.Name, runID, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *JSONLSink) Runs(context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil, coreoutput.ErrNotInitialized
	}
	seen := map[int]bool{}
	err := s.scan(coreoutput.RunTable, func(l line) error {
		seen[l.RunID] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// ReadTable returns the rows of a table ordered by run id.
func (s *JSONLSink) ReadTable(_ context.Context, name string) ([]coreoutput.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil, coreoutput.ErrNotInitialized
	}
	var out []coreoutput.Record
	err := s.scan(name, func(l line) error {
		out = append(out, coreoutput.Record{RunID: l.RunID, Values: l.Values})
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, err
}

func (s *JSONLSink) Close() error { return nil }

func (s *JSONLSink) path(table string) string { return filepath.Join(s.dir, table+jsonlExt) }

func (s *JSONLSink) tables() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), jsonlExt) {
			out = append(out, strings.TrimSuffix(e.Name(), jsonlExt))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *JSONLSink) scan(table string, fn func(line) error) error {
	f, err := os.Open(s.path(table))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return fmt.Errorf("%s line %d: %w", table, n, err)
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	return sc.Err()
}

func (s *JSONLSink) filter(table string, keep func(line) bool) error {
	var kept [][]byte
	err := s.scanRaw(table, func(raw []byte, l line) {
		if keep(l) {
			kept = append(kept, append([]byte(nil), raw...))
		}
	})
	if err != nil {
		return err
	}
	return replaceFile(s.path(table), func(f *os.File) error {
		w := bufio.NewWriter(f)
		for _, b := range kept {
			if _, err := w.Write(append(b, '\n')); err != nil {
				return err
			}
		}
		return w.Flush()
	})
}

func (s *JSONLSink) scanRaw(table string, fn func([]byte, line)) error {
	f, err := os.Open(s.path(table))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			return err
		}
		fn(sc.Bytes(), l)
	}
	return sc.Err()
}

// replaceFile writes to a temporary file and renames it over path.
func replaceFile(path string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
