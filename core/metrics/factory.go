package metrics

import "github.com/kilianp07/gridsweep/core/factory"

var recorderRegistry = factory.NewRegistry[RunRecorder]()

func init() {
	_ = RegisterRecorder("nop", func(map[string]any) (RunRecorder, error) {
		return NopSink{}, nil
	})
}

// RegisterRecorder adds a recorder factory identified by name.
func RegisterRecorder(name string, f factory.Factory[RunRecorder]) error {
	return recorderRegistry.Register(name, f)
}

// NewRecorder creates a RunRecorder from the provided configuration.
func NewRecorder(cfgs []factory.ModuleConfig) (RunRecorder, error) {
	if len(cfgs) == 0 {
		return NopSink{}, nil
	}
	if len(cfgs) == 1 {
		return recorderRegistry.Create(cfgs[0])
	}
	sinks := make([]RunRecorder, len(cfgs))
	for i, c := range cfgs {
		s, err := recorderRegistry.Create(c)
		if err != nil {
			return nil, err
		}
		sinks[i] = s
	}
	return NewMultiSink(sinks...), nil
}
