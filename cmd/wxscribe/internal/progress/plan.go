package progress

import (
	"errors"
	"fmt"
)

// Phase is one stage of a run with a reserved sub-range of the global 0–100 axis.
type Phase struct {
	Name  string // machine name, used for logs and metrics
	Label string // shown next to the bar
	Start float64
	End   float64
}

// Phase names of the transcription pipeline.
const (
	PhaseModelLoad  = "model-load"
	PhaseAudioLoad  = "audio-load"
	PhaseInference  = "inference"
	PhaseAlignment  = "alignment"
	PhaseExport     = "export"
	PhaseConversion = "conversion"
)

// VideoConversion is rendered before the pipeline plan starts; [0,5] stays
// reserved for pre-flight work.
var VideoConversion = Phase{Name: PhaseConversion, Label: "Video conversion", Start: 5, End: 15}

// Plan is an ordered list of phases covering the whole run.
type Plan []Phase

// DefaultPlan is the transcription pipeline layout.
var DefaultPlan = Plan{
	{Name: PhaseModelLoad, Label: "Loading model", Start: 0, End: 10},
	{Name: PhaseAudioLoad, Label: "Loading audio", Start: 10, End: 15},
	{Name: PhaseInference, Label: "Transcription", Start: 15, End: 70},
	{Name: PhaseAlignment, Label: "Alignment", Start: 70, End: 90},
	{Name: PhaseExport, Label: "Word export", Start: 90, End: 100},
}

// Validate checks that the phases are contiguous, increasing and span [0,100].
func (p Plan) Validate() error {
	if len(p) == 0 {
		return errors.New("progress plan is empty")
	}
	if p[0].Start != 0 {
		return fmt.Errorf("progress plan starts at %.2f, want 0", p[0].Start)
	}
	if last := p[len(p)-1]; last.End != 100 {
		return fmt.Errorf("progress plan ends at %.2f, want 100", last.End)
	}
	seen := make(map[string]bool, len(p))
	for i, ph := range p {
		if ph.Start >= ph.End {
			return fmt.Errorf("phase %s: start %.2f must be below end %.2f", ph.Name, ph.Start, ph.End)
		}
		if seen[ph.Name] {
			return fmt.Errorf("phase %s declared twice", ph.Name)
		}
		seen[ph.Name] = true
		if i > 0 && ph.Start != p[i-1].End {
			return fmt.Errorf("phase %s starts at %.2f but %s ends at %.2f", ph.Name, ph.Start, p[i-1].Name, p[i-1].End)
		}
	}
	return nil
}

// Lookup returns the phase called name.
func (p Plan) Lookup(name string) (Phase, bool) {
	for _, ph := range p {
		if ph.Name == name {
			return ph, true
		}
	}
	return Phase{}, false
}
