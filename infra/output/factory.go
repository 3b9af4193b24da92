package output

import coreoutput "github.com/kilianp07/gridsweep/core/output"

// init registers the persistent backends.
func init() {
	_ = coreoutput.Register("file", func(map[string]any) (coreoutput.Sink, error) {
		return NewJSONLSink(), nil
	})
	_ = coreoutput.Register("database", func(map[string]any) (coreoutput.Sink, error) {
		return NewSQLiteSink(), nil
	})
}
