package metrics

import (
	"github.com/kilianp07/gridsweep/core/factory"
	coremetrics "github.com/kilianp07/gridsweep/core/metrics"
)

// init registers built-in run recorders.
func init() {
	_ = coremetrics.RegisterRecorder("prometheus", func(map[string]any) (coremetrics.RunRecorder, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterRecorder("influx", func(conf map[string]any) (coremetrics.RunRecorder, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
