// Package export renders run tables and slot tables for inspection outside
// a sweep.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/gridsweep/core/scenario"
	"github.com/kilianp07/gridsweep/core/timemap"
)

// StepRecord is the JSON form of one run step.
type StepRecord struct {
	Axis  string  `json:"axis"`
	ID    int     `json:"id"`
	Value float64 `json:"value"`
	Label string  `json:"label,omitempty"`
}

// RunRecord is the JSON form of one run.
type RunRecord struct {
	RunID int          `json:"run_id"`
	Steps []StepRecord `json:"steps"`
}

// Records converts the run table to its JSON form.
func Records(m *scenario.Matrix) []RunRecord {
	runs := m.Runs()
	out := make([]RunRecord, len(runs))
	for i, r := range runs {
		rec := RunRecord{RunID: r.ID, Steps: make([]StepRecord, len(r.Steps))}
		for j, s := range r.Steps {
			rec.Steps[j] = StepRecord{Axis: s.Axis, ID: s.ID, Value: s.Value, Label: s.Label}
		}
		out[i] = rec
	}
	return out
}

// WriteMatrixJSON writes the run table to w as indented JSON.
func WriteMatrixJSON(w io.Writer, m *scenario.Matrix) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Records(m))
}

// WriteMatrixCSV writes the run table to w with one id, value and label
// column per axis.
func WriteMatrixCSV(w io.Writer, m *scenario.Matrix) error {
	cw := csv.NewWriter(w)
	axes := m.Axes()
	header := []string{"run_id"}
	for _, a := range axes {
		header = append(header, a.Name+"_id", a.Name+"_vl", a.Name+"_lb")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range m.Runs() {
		rec := []string{strconv.Itoa(r.ID)}
		for _, a := range axes {
			v, _ := r.Value(a.Name)
			lbl, _ := r.Label(a.Name)
			rec = append(rec, strconv.Itoa(r.StepID(a.Name)), formatFloat(v), lbl)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSlotsCSV writes the slot table of a node to w. Offsets and lengths
// are in hours from the start of the reference year.
func WriteSlotsCSV(w io.Writer, m *timemap.Map) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"node", "slot", "start_h", "duration_h", "month", "first_sample"}); err != nil {
		return err
	}
	for _, s := range m.Slots() {
		rec := []string{
			s.Node,
			strconv.Itoa(s.Index),
			formatFloat(s.Start.Hours()),
			formatFloat(s.Duration.Hours()),
			strconv.Itoa(s.Month),
			strconv.Itoa(s.First),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
