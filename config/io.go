package config

import (
	"fmt"

	"github.com/kilianp07/gridsweep/core/output"
	"github.com/kilianp07/gridsweep/core/sweep"
)

// Output backends selectable in configuration.
const (
	OutputFile     = "file"
	OutputDatabase = "database"
)

// IOConfig selects the output container and the resume behavior.
type IOConfig struct {
	Output         output.Descriptor `json:"output"`
	SuppressOutput bool              `json:"suppress_output"`
	// ResumeFrom skips runs below the given id.
	ResumeFrom *int `json:"resume_from"`
	ResumeAuto bool `json:"resume_auto"`
	// Replace selects per-run replacement instead of the bulk reset.
	Replace   bool  `json:"replace"`
	Overwrite bool  `json:"overwrite"`
	FailFast  bool  `json:"fail_fast"`
	Only      []int `json:"only"`
}

// SetDefaults fills unset fields.
func (c *IOConfig) SetDefaults() {
	if c.Output.Kind == "" {
		c.Output.Kind = OutputFile
	}
	if c.Output.Path == "" {
		switch c.Output.Kind {
		case OutputDatabase:
			c.Output.Path = "gridsweep.db"
		default:
			c.Output.Path = "output"
		}
	}
	if c.Output.Collection == "" {
		c.Output.Collection = "runs"
	}
}

// Validate checks the io section. Run id ranges are checked against the
// run table when the sweep starts.
func (c IOConfig) Validate() error {
	if c.Output.Kind != OutputFile && c.Output.Kind != OutputDatabase {
		return fmt.Errorf("unknown output kind %q", c.Output.Kind)
	}
	if c.ResumeFrom != nil && c.ResumeAuto {
		return fmt.Errorf("resume_from and resume_auto are exclusive")
	}
	if len(c.Only) > 0 && !c.Replace {
		return fmt.Errorf("only requires replace")
	}
	return nil
}

// Policy returns the resume policy.
func (c IOConfig) Policy() sweep.Policy {
	if c.Replace {
		return sweep.PerRunReplace
	}
	return sweep.BulkReset
}

// Options builds the runner options of one sweep session.
func (c IOConfig) Options(session string, metadataOnly bool) sweep.Options {
	return sweep.Options{
		ResumeFrom:     c.ResumeFrom,
		ResumeAuto:     c.ResumeAuto,
		Policy:         c.Policy(),
		Only:           sweep.SortedOnly(c.Only),
		MetadataOnly:   metadataOnly,
		FailFast:       c.FailFast,
		SuppressOutput: c.SuppressOutput,
		Overwrite:      c.Overwrite,
		Session:        session,
	}
}
