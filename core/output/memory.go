package output

import (
	"context"
	"sort"
	"sync"
)

func init() {
	_ = Register("memory", func(map[string]any) (Sink, error) {
		return NewMemorySink(), nil
	})
}

// MemorySink keeps results in memory. It is used by tests and by dry runs
// that only need the report.
type MemorySink struct {
	mu     sync.Mutex
	init   bool
	meta   *Meta
	tables map[string][]Record
	done   map[int]bool
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{tables: make(map[string][]Record), done: make(map[int]bool)}
}

func (s *MemorySink) Init(context.Context, Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init = true
	return nil
}

func (s *MemorySink) ReadMeta(context.Context) (Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return Meta{}, ErrNotInitialized
	}
	if s.meta == nil {
		return Meta{}, ErrNoMeta
	}
	return *s.meta, nil
}

func (s *MemorySink) WriteMeta(_ context.Context, m Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return ErrNotInitialized
	}
	m.Axes = append([]string(nil), m.Axes...)
	s.meta = &m
	return nil
}

func (s *MemorySink) DeleteRuns(_ context.Context, r RunRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return ErrNotInitialized
	}
	for name, recs := range s.tables {
		kept := recs[:0]
		for _, rec := range recs {
			if !r.Contains(rec.RunID) {
				kept = append(kept, rec)
			}
		}
		s.tables[name] = kept
	}
	for id := range s.done {
		if r.Contains(id) {
			delete(s.done, id)
		}
	}
	return nil
}

func (s *MemorySink) WriteRun(_ context.Context, runID int, tables []Table) error {
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return ErrNotInitialized
	}
	complete := false
	for _, t := range tables {
		for _, rec := range t.Records() {
			s.tables[t.Name] = append(s.tables[t.Name], Record{RunID: runID, Values: rec})
		}
		if t.Name == RunTable && len(t.Rows) > 0 {
			complete = true
		}
	}
	if complete {
		s.done[runID] = true
	}
	return nil
}

func (s *MemorySink) Runs(context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return nil, ErrNotInitialized
	}
	out := make([]int, 0, len(s.done))
	for id := range s.done {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// ReadTable returns the stored rows of a table ordered by run id.
func (s *MemorySink) ReadTable(_ context.Context, name string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Record(nil), s.tables[name]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RunID < out[j].RunID })
	return out, nil
}

func (s *MemorySink) Close() error { return nil }
