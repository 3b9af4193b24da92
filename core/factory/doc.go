// Package factory instantiates pluggable modules from configuration. A module
// is named by a type string and carries a map of raw settings that its
// factory decodes with Decode.
//
// Output sinks (file, database, memory) and run recorders (nop, prometheus,
// influx) each keep their own Registry:
//
//	reg := factory.NewRegistry[metrics.RunRecorder]()
//	_ = reg.Register("influx", func(conf map[string]any) (metrics.RunRecorder, error) {
//	    var c struct{ URL string `json:"url"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newInflux(c.URL), nil
//	})
//	rec, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://influx:8086"}})
package factory
