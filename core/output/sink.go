package output

import (
	"context"

	"github.com/kilianp07/gridsweep/core/factory"
)

// Sink persists sweep results. Implementations must keep runs that are not
// targeted by DeleteRuns intact across reopenings, and must store the
// RunTable row of a run only after its other tables.
type Sink interface {
	Init(ctx context.Context, d Descriptor) error
	ReadMeta(ctx context.Context) (Meta, error)
	WriteMeta(ctx context.Context, m Meta) error
	DeleteRuns(ctx context.Context, r RunRange) error
	WriteRun(ctx context.Context, runID int, tables []Table) error
	// Runs returns the ids of completed runs in ascending order.
	Runs(ctx context.Context) ([]int, error)
	Close() error
}

// Reader is implemented by sinks able to read stored rows back.
type Reader interface {
	ReadTable(ctx context.Context, name string) ([]Record, error)
}

var registry = factory.NewRegistry[Sink]()

// Register adds a sink backend identified by kind.
func Register(kind string, f factory.Factory[Sink]) error {
	return registry.Register(kind, f)
}

// Kinds lists the registered backends.
func Kinds() []string { return registry.Names() }

// New creates an uninitialized sink of the given kind.
func New(kind string, conf map[string]any) (Sink, error) {
	return registry.Create(factory.ModuleConfig{Type: kind, Conf: conf})
}

// Open creates the sink for d.Kind and initializes it.
func Open(ctx context.Context, d Descriptor) (Sink, error) {
	s, err := New(d.Kind, nil)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx, d); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
