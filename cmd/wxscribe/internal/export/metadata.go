package export

import (
	"path/filepath"
	"strings"
)

// RunMetadata describes a run in the document header. It is built once per
// run and not modified afterwards.
type RunMetadata struct {
	Title    string
	Filename string
	Duration string
	Model    string
	Language string
}

// NewRunMetadata derives the metadata for the recording at source. The title
// is the file name without its extension.
func NewRunMetadata(source string, durationSec float64, durationKnown bool, model, language string) RunMetadata {
	name := filepath.Base(source)
	return RunMetadata{
		Title:    strings.TrimSuffix(name, filepath.Ext(name)),
		Filename: name,
		Duration: FormatDuration(durationSec, durationKnown),
		Model:    model,
		Language: language,
	}
}
