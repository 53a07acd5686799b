package transcriber

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/blazeiburgess/WaoN/midi"
)

// NoteReport is a note as it appears in JSON output.
type NoteReport struct {
	Key             int     `json:"key"`
	Name            string  `json:"name"`
	Velocity        int     `json:"velocity"`
	StartFrame      int     `json:"start_frame"`
	DurationFrames  int     `json:"duration_frames"`
	StartSeconds    float64 `json:"start_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Report is the JSON document describing one transcription.
type Report struct {
	Input   string       `json:"input,omitempty"`
	Output  string       `json:"output,omitempty"`
	Summary Summary      `json:"summary"`
	Notes   []NoteReport `json:"notes"`
}

// Report converts the result to its JSON form.
func (r *Result) Report(input, output string) *Report {
	secondsPerFrame := 0.0
	if r.Summary.SampleRate > 0 {
		secondsPerFrame = float64(r.Summary.Hop) / float64(r.Summary.SampleRate)
	}

	report := &Report{
		Input:   input,
		Output:  output,
		Summary: r.Summary,
		Notes:   make([]NoteReport, 0, len(r.Notes)),
	}
	for _, n := range r.Notes {
		report.Notes = append(report.Notes, NoteReport{
			Key:             n.Key,
			Name:            midi.KeyName(n.Key),
			Velocity:        n.Velocity,
			StartFrame:      n.Start,
			DurationFrames:  n.Duration(),
			StartSeconds:    float64(n.Start) * secondsPerFrame,
			DurationSeconds: float64(n.Duration()) * secondsPerFrame,
		})
	}
	return report
}

// WriteJSON writes the report as indented JSON.
func (rep *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	return nil
}
