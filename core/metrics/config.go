package metrics

import "github.com/kilianp07/gridsweep/core/factory"

// Config defines settings for run recorders.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// Listen is the address of the /metrics endpoint. Empty disables it.
	Listen string `json:"listen"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if len(c.Sinks) == 0 {
		c.Sinks = []factory.ModuleConfig{{Type: "nop"}}
	}
}
