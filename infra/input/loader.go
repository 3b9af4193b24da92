// Package input reads the system definition of the reference energy model
// from a YAML file. Profiles are given inline, as a constant, or as a CSV
// file next to the YAML file.
package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/gridsweep/core/energy"
)

// SeriesDef is a profile as written in the system file.
type SeriesDef struct {
	Kind        string    `yaml:"kind"`
	Node        string    `yaml:"node,omitempty"`
	Carrier     string    `yaml:"carrier,omitempty"`
	Plant       string    `yaml:"plant,omitempty"`
	Aggregation string    `yaml:"aggregation,omitempty"`
	Values      []float64 `yaml:"values,omitempty"`
	Constant    *float64  `yaml:"constant,omitempty"`
	File        string    `yaml:"file,omitempty"`
	Column      string    `yaml:"column,omitempty"`
	Scale       float64   `yaml:"scale,omitempty"`
}

// SystemDef is the YAML layout of a system file.
type SystemDef struct {
	Carriers      []string              `yaml:"carriers"`
	PlantTypes    []string              `yaml:"plant_types"`
	Nodes         []string              `yaml:"nodes"`
	Plants        []energy.Plant        `yaml:"plants"`
	Interconnects []energy.Interconnect `yaml:"interconnects"`
	Series        []SeriesDef           `yaml:"series"`
	GridLosses    []energy.GridLoss     `yaml:"grid_losses"`
}

// Load reads the system file at path. samples gives the number of native
// samples in the full year for every node; constant profiles are expanded to
// that length and every other profile must match it.
func Load(path string, samples map[string]int) (energy.System, error) {
	def, err := ReadDef(path)
	if err != nil {
		return energy.System{}, err
	}
	return def.Resolve(filepath.Dir(path), samples)
}

// ReadDef parses the system file at path without reading its profiles.
func ReadDef(path string) (SystemDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SystemDef{}, err
	}
	var def SystemDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return SystemDef{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return def, nil
}

// Resolve turns the definition into a System, reading CSV profiles relative
// to dir.
func (d SystemDef) Resolve(dir string, samples map[string]int) (energy.System, error) {
	sys := energy.System{
		Carriers:      d.Carriers,
		PlantTypes:    d.PlantTypes,
		Nodes:         d.Nodes,
		Plants:        d.Plants,
		Interconnects: d.Interconnects,
		GridLosses:    d.GridLosses,
	}
	plantNode := map[string]string{}
	for _, p := range d.Plants {
		plantNode[p.Name] = p.Node
	}
	for i, sd := range d.Series {
		node := sd.Node
		if sd.Kind == energy.KindAvailability {
			node = plantNode[sd.Plant]
		}
		n, ok := samples[node]
		if !ok {
			return energy.System{}, fmt.Errorf("series %d (%s): node %q has no resolution", i, sd.Kind, node)
		}
		vals, err := sd.values(dir, n)
		if err != nil {
			return energy.System{}, fmt.Errorf("series %d (%s %s%s): %w", i, sd.Kind, sd.Node, sd.Plant, err)
		}
		sys.Series = append(sys.Series, energy.Series{
			Kind:        sd.Kind,
			Node:        sd.Node,
			Carrier:     sd.Carrier,
			Plant:       sd.Plant,
			Aggregation: sd.Aggregation,
			Values:      vals,
		})
	}
	return sys, sys.Validate()
}

func (sd SeriesDef) values(dir string, n int) ([]float64, error) {
	sources := 0
	for _, set := range []bool{len(sd.Values) > 0, sd.Constant != nil, sd.File != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of values, constant or file is required")
	}

	var vals []float64
	switch {
	case sd.Constant != nil:
		vals = make([]float64, n)
		for i := range vals {
			vals[i] = *sd.Constant
		}
	case sd.File != "":
		p := sd.File
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		vals, err = ReadCSV(f, sd.Column)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sd.File, err)
		}
	default:
		vals = append([]float64(nil), sd.Values...)
	}
	if len(vals) != n {
		return nil, fmt.Errorf("%d samples, want %d", len(vals), n)
	}
	if sd.Scale != 0 {
		for i := range vals {
			vals[i] *= sd.Scale
		}
	}
	return vals, nil
}

// ReadCSV reads one numeric column. A first row that does not parse as a
// number is treated as a header; column selects a header name and defaults
// to the first column.
func ReadCSV(r io.Reader, column string) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty profile")
	}

	col := 0
	start := 0
	if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
		start = 1
		if column != "" {
			col = -1
			for i, h := range records[0] {
				if strings.EqualFold(strings.TrimSpace(h), column) {
					col = i
					break
				}
			}
			if col < 0 {
				return nil, fmt.Errorf("column %q not found", column)
			}
		}
	} else if column != "" {
		return nil, fmt.Errorf("column %q requested but profile has no header", column)
	}

	out := make([]float64, 0, len(records)-start)
	for i, rec := range records[start:] {
		if col >= len(rec) {
			return nil, fmt.Errorf("row %d: missing column %d", i+start+1, col)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+start+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
